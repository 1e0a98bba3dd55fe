package handlers

import "strings"

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validateRegistration(req registerRequest) string {
	if req.Name == "" {
		return "nome é obrigatório"
	}
	if !strings.Contains(req.Email, "@") || strings.ContainsAny(req.Email, " \t") {
		return "e-mail inválido"
	}
	if len(req.Phone) < 10 || len(req.Phone) > 11 {
		return "telefone inválido"
	}
	if len(req.CPF) != 11 {
		return "CPF deve ter 11 dígitos"
	}
	return validatePassword(req.Password, req.ConfirmPassword)
}

func validatePassword(password, confirm string) string {
	if len(password) < 6 {
		return "a senha deve ter pelo menos 6 caracteres"
	}
	if password != strings.TrimSpace(confirm) {
		return "as senhas não conferem"
	}
	return ""
}
