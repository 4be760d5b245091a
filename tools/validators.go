package tools

import (
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail diz se o email tem formato comum. O engine não rejeita emails fora do padrão,
// só registra no log: o email é um identificador livre vindo do provedor de pagamento.
func ValidateEmail(email string) bool {
	return emailRe.MatchString(email)
}

// NormalizeEmail é a forma canônica usada para gravar e consultar acessos.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePlanCode remove espaços nas pontas; o código do plano é opaco e sensível a maiúsculas.
func NormalizePlanCode(code string) string {
	return strings.TrimSpace(code)
}
