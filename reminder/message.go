package reminder

import "fmt"

const messageTemplate = `📌 *Recordatorio*

👤 Nombre: %s
💼 Cargo: %s
📅 Fecha: %s

Este es un aviso automático.`

// Render builds the outbound text for a record. Blank fields render as empty
// segments; the date is shown as DD/MM/YYYY.
func Render(r Record) string {
	date := ""
	if r.Date != nil {
		date = r.Date.Display()
	}
	return fmt.Sprintf(messageTemplate, r.Name, r.Role, date)
}
