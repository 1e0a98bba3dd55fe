package email

import (
	"fmt"
	"strings"
	"time"
)

// AppointmentEvent mirrors the payload published by the booking service.
type AppointmentEvent struct {
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
	UserEmail string      `json:"user_email"`
	Date      string      `json:"date"`
	Staff     string      `json:"staff"`
	Service   string      `json:"service"`
	Items     []EventItem `json:"items"`
	Previous  *Snapshot   `json:"previous,omitempty"`
}

type EventItem struct {
	AppointmentID string `json:"appointment_id"`
	ChildName     string `json:"child_name"`
	Slot          string `json:"slot"`
}

type Snapshot struct {
	Date      string `json:"date"`
	Slot      string `json:"slot"`
	Staff     string `json:"staff"`
	Service   string `json:"service"`
	ChildName string `json:"child_name"`
}

// ResetEvent mirrors the password reset payload from the auth service.
type ResetEvent struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ResetURL string `json:"reset_url"`
}

const (
	SubjectBooked    = "Confirmação do seu Agendamento"
	SubjectEdited    = "Alteração Confirmada no Seu Agendamento"
	SubjectCancelled = "Confirmação de Exclusão do Agendamento"
	SubjectReset     = "Redefinição de Senha"

	signature = "Equipe do FridaKids"
)

// formatDate turns the wire date (2006-01-02) into the Brazilian dd/MM/yyyy.
// Unparseable input passes through untouched rather than breaking the email.
func formatDate(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.Format("02/01/2006")
}

func firstName(full string) string {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "cliente"
	}
	return parts[0]
}

func itemLines(evt AppointmentEvent) string {
	var b strings.Builder
	for _, it := range evt.Items {
		fmt.Fprintf(&b, "  - %s: %s com %s em %s às %s\n",
			it.ChildName, evt.Service, evt.Staff, formatDate(evt.Date), it.Slot)
	}
	return b.String()
}

func BookedBody(evt AppointmentEvent) string {
	return fmt.Sprintf(`Olá, %s!

Seu agendamento foi confirmado:

%s
Caso precise alterar ou cancelar, acesse sua conta no site.

Até breve!

%s
`, firstName(evt.UserName), itemLines(evt), signature)
}

func EditedBody(evt AppointmentEvent) string {
	var prev string
	if evt.Previous != nil {
		prev = fmt.Sprintf("Antes: %s com %s em %s às %s\n",
			evt.Previous.Service, evt.Previous.Staff, formatDate(evt.Previous.Date), evt.Previous.Slot)
	}
	return fmt.Sprintf(`Olá, %s!

Seu agendamento foi alterado com sucesso.

%sAgora:
%s
Até breve!

%s
`, firstName(evt.UserName), prev, itemLines(evt), signature)
}

func CancelledBody(evt AppointmentEvent) string {
	return fmt.Sprintf(`Olá, %s!

Seu agendamento foi cancelado:

%s
Esperamos ver você em breve!

%s
`, firstName(evt.UserName), itemLines(evt), signature)
}

func ResetBody(evt ResetEvent) string {
	return fmt.Sprintf(`Olá, %s!

Recebemos um pedido para redefinir a sua senha. Para continuar, acesse o
link abaixo (válido por 1 hora):

  %s

Se você não pediu a redefinição, ignore este e-mail.

%s
`, firstName(evt.Name), evt.ResetURL, signature)
}
