package ranking

import "time"

// Weekday labels in canonical Monday..Sunday order.
var weekdayLabels = [...]string{"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo"}

// Month labels indexed by time.Month - 1.
var monthLabels = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// weekdayIndex maps time.Weekday (Sunday=0) onto Monday-first order.
func weekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// MonthLabel returns the display label for m, or "" for the zero month.
func MonthLabel(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthLabels[m-1]
}

// WeekdayLabel returns the display label for d.
func WeekdayLabel(d time.Weekday) string {
	return weekdayLabels[weekdayIndex(d)]
}
