package controllers

import (
	"strconv"
	"sync"
	"time"

	"zapcrm/models"

	"github.com/jinzhu/gorm"
)

// eventDeduper é o guard rápido, local ao processo: um set de fingerprints
// com TTL fixo, expirado preguiçosamente por timer. Só vale dentro de uma
// instância quente; a garantia real entre instâncias é a linha em
// processed_events (ClaimProcessedEvent).
type eventDeduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]int64
	gen  int64
}

func newEventDeduper(ttl time.Duration) *eventDeduper {
	return &eventDeduper{
		ttl:  ttl,
		seen: make(map[string]int64),
	}
}

// Check devolve se a key já foi vista e, como efeito colateral, sempre
// (re)insere a key com expiração renovada.
func (d *eventDeduper) Check(key string) bool {
	d.mu.Lock()
	_, exists := d.seen[key]
	d.gen++
	gen := d.gen
	d.seen[key] = gen
	d.mu.Unlock()

	// A geração evita que o timer de uma inserção antiga remova uma
	// reinserção mais nova da mesma key.
	time.AfterFunc(d.ttl, func() {
		d.mu.Lock()
		if d.seen[key] == gen {
			delete(d.seen, key)
		}
		d.mu.Unlock()
	})

	return exists
}

// EventFingerprint monta a chave de dedup: tipo do evento + melhor
// identificador de mensagem disponível. Sem identificador, cai no timestamp
// corrente, o que na prática desliga o dedup para aquele evento.
func EventFingerprint(p EvolutionWebhookPayload) string {
	id := p.Data.BestMessageIdentifier()
	if id == "" {
		id = strconv.FormatInt(time.Now().UnixNano(), 10)
	}
	return p.Event + ":" + id
}

// ClaimProcessedEvent tenta reservar o fingerprint na tabela durável.
// Devolve true quando este caller é o dono do processamento. Linha expirada
// é reciclada no lugar (o janitor só limpa volume).
func ClaimProcessedEvent(dbc *gorm.DB, fingerprint string, ttl time.Duration) (bool, error) {
	now := time.Now()
	expires := now.Add(ttl)

	row := models.ProcessedEvent{Fingerprint: fingerprint, ExpiresAt: &expires}
	err := dbc.Create(&row).Error
	if err == nil {
		return true, nil
	}
	if !models.IsUniqueViolation(err) {
		return false, err
	}

	var existing models.ProcessedEvent
	if err := dbc.Where("fingerprint = ?", fingerprint).First(&existing).Error; err != nil {
		// perdemos a corrida e a linha sumiu no meio; trata como duplicado
		return false, nil
	}
	if existing.ExpiresAt != nil && existing.ExpiresAt.After(now) {
		return false, nil
	}

	// expirada: renova e processa de novo
	res := dbc.Model(&models.ProcessedEvent{}).
		Where("id = ? AND expires_at <= ?", existing.ID, now).
		Update("expires_at", expires)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
