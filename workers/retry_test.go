package workers

import (
	"errors"
	"testing"
	"time"
)

func TestNextDelayGrowsExponentially(t *testing.T) {
	p := DefaultBackoffPolicy(5)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{0, 2 * time.Second}, // abaixo de 1 vale como primeira tentativa
	}
	for _, c := range cases {
		if got := p.NextDelay(c.attempt); got != c.want {
			t.Errorf("NextDelay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestNextDelayCapped(t *testing.T) {
	p := DefaultBackoffPolicy(5)
	if got := p.NextDelay(30); got != p.MaxDelay {
		t.Errorf("NextDelay(30) = %v, want cap %v", got, p.MaxDelay)
	}
}

func TestRetryableClassification(t *testing.T) {
	p := DefaultBackoffPolicy(5)

	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("read: connection reset by peer"), true},
		{errors.New("context deadline exceeded (Client.Timeout)"), true},
		{errors.New("engine webhook error: status=502"), true},
		{errors.New("engine webhook error: status=401"), false},
		{errors.New("engine webhook error: status=400"), false},
		{errors.New("engine endpoint not configured"), false},
		{errors.New("something unexpected"), true}, // desconhecido volta pra fila
	}
	for _, c := range cases {
		if got := p.Retryable(c.err); got != c.want {
			t.Errorf("Retryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}
