package workers

import (
	"math"
	"strings"
	"time"
)

// BackoffPolicy controla a reentrega do outbox com backoff exponencial.
type BackoffPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// DefaultBackoffPolicy: 2s inicial, dobra a cada tentativa, teto de 5min.
// MaxAttempts vem da configuração (outbox_max_attempts).
func DefaultBackoffPolicy(maxAttempts int) *BackoffPolicy {
	return &BackoffPolicy{
		MaxAttempts:  maxAttempts,
		InitialDelay: 2 * time.Second,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Minute,
	}
}

// NextDelay devolve o atraso para a tentativa dada (1-indexada):
// InitialDelay * Multiplier^(attempt-1), limitado a MaxDelay.
func (p *BackoffPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Retryable classifica o erro de entrega. Erros de rede/timeout voltam pra
// fila; rejeição explícita do engine (401/403/validação) é permanente.
// Desconhecido é retryable.
func (p *BackoffPolicy) Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "temporary failure") ||
		strings.Contains(msg, "status=5") {
		return true
	}

	if strings.Contains(msg, "status=401") ||
		strings.Contains(msg, "status=403") ||
		strings.Contains(msg, "status=400") ||
		strings.Contains(msg, "not configured") {
		return false
	}

	return true
}
