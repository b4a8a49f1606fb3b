package domain

import (
	"bytes"
	"fmt"
	"html/template"
	"strconv"
)

var popupTmpl = template.Must(template.New("popup").Parse(
	`<div><strong>Weather</strong><br>` +
		`{{if .PlaceName}}{{.PlaceName}}<br>{{end}}` +
		`Location: {{.Location}}<br>` +
		`Condition: {{.Condition}}<br>` +
		`Temperature: {{.Temperature}}°C<br></div>`))

type popupView struct {
	PlaceName   string
	Location    string
	Condition   string
	Temperature string
}

// RenderPopup formats a weather report for display at c.
func RenderPopup(c Coordinate, report WeatherReport) (PopupContent, error) {
	var buf bytes.Buffer
	err := popupTmpl.Execute(&buf, popupView{
		PlaceName:   report.PlaceName,
		Location:    c.String(),
		Condition:   report.Condition,
		Temperature: strconv.FormatFloat(report.TemperatureC, 'f', -1, 64),
	})
	if err != nil {
		return "", fmt.Errorf("render popup: %w", err)
	}
	return PopupContent(buf.String()), nil
}
