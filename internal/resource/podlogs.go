package resource

import (
	"bytes"
	"context"
	"errors"
	"io"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/client-go/kubernetes"
)

var errNoLogReader = errors.New("pod log reader not configured")

// clientsetLogReader reads the log subresource through the typed
// clientset, which the controller-runtime client does not expose.
type clientsetLogReader struct {
	cs kubernetes.Interface
}

// NewPodLogReader adapts a clientset into a PodLogReader.
func NewPodLogReader(cs kubernetes.Interface) PodLogReader {
	return &clientsetLogReader{cs: cs}
}

func (p *clientsetLogReader) PodLogs(ctx context.Context, namespace, name string, tailLines int64) (string, error) {
	opts := &corev1.PodLogOptions{Timestamps: true}
	if tailLines > 0 {
		opts.TailLines = &tailLines
	}

	stream, err := p.cs.CoreV1().Pods(namespace).GetLogs(name, opts).Stream(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = stream.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return "", err
	}
	return buf.String(), nil
}
