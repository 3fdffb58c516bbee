package models

import "strings"

// IsUniqueViolation classifica erros de insert como violação de índice único,
// cobrindo as mensagens do sqlite3 e o código 23505 do postgres. É o que
// permite usar "unique constraint como mutex" no ledger e tratar tag repetida
// como sucesso.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "23505")
}
