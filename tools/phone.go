package tools

import (
	"strings"
	"unicode"
)

// Sufixos de JID que o provider anexa ao identificador do chat.
var jidSuffixes = []string{
	"@s.whatsapp.net",
	"@c.us",
	"@g.us",
	"@broadcast",
	"@lid",
	"@newsletter",
}

// Códigos de dois dígitos que o provider às vezes re-anexa no FIM de um número
// já qualificado (bug conhecido: duplica o DDI). Só são removidos quando o
// número ultrapassa 13 dígitos, comprimento que nenhum MSISDN legítimo atinge.
var trailingArtifacts = []string{"55"}

// CanonicalPhone extrai o telefone canônico (somente dígitos) de um
// identificador de chat do provider, ex: "5511999999999@s.whatsapp.net".
// Função pura; entrada malformada devolve string vazia.
func CanonicalPhone(jid string) string {
	jid = strings.TrimSpace(jid)
	if jid == "" {
		return ""
	}

	for _, suffix := range jidSuffixes {
		if strings.HasSuffix(jid, suffix) {
			jid = strings.TrimSuffix(jid, suffix)
			break
		}
	}

	var b strings.Builder
	b.Grow(len(jid))
	for _, r := range jid {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	phone := b.String()

	if len(phone) > 13 {
		for _, artifact := range trailingArtifacts {
			if strings.HasSuffix(phone, artifact) {
				phone = phone[:len(phone)-len(artifact)]
				break
			}
		}
	}

	return phone
}

// IsGroupJid reporta se o identificador é de grupo.
func IsGroupJid(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@g.us")
}

// IsBroadcastJid reporta se o identificador é de broadcast/status.
func IsBroadcastJid(jid string) bool {
	return strings.HasSuffix(strings.TrimSpace(jid), "@broadcast")
}
