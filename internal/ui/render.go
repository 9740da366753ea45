// Package ui renders the alert list state.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"hemogram-alerts-go/internal/models"
	"hemogram-alerts-go/internal/viewmodel"
)

//go:embed templates/*.html
var templateFS embed.FS

// View is one of the mutually exclusive presentations of a state.
type View string

const (
	ViewLoading View = "loading"
	ViewError   View = "error"
	ViewList    View = "list"
)

// Select picks the view for s. Loading wins over an error, and an error wins
// over the list.
func Select(s viewmodel.State) View {
	switch {
	case s.Loading:
		return ViewLoading
	case s.HasError():
		return ViewError
	default:
		return ViewList
	}
}

// Card is the display form of one alert.
type Card struct {
	Message  string
	Patient  string
	Received string
}

func cardFor(a models.Alert) Card {
	return Card{
		Message:  a.Message,
		Patient:  "Patient: " + a.Region,
		Received: "Received at: " + a.Parameter,
	}
}

// Screen is the data handed to the templates.
type Screen struct {
	View  View
	Error string
	Cards []Card
}

// NewScreen builds the screen for s. Only the fields of the selected view are set.
func NewScreen(s viewmodel.State) Screen {
	screen := Screen{View: Select(s)}
	switch screen.View {
	case ViewError:
		screen.Error = s.Error
	case ViewList:
		screen.Cards = make([]Card, 0, len(s.Alerts))
		for _, a := range s.Alerts {
			screen.Cards = append(screen.Cards, cardFor(a))
		}
	}
	return screen
}

type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the full page for s.
func (r *Renderer) Render(w io.Writer, s viewmodel.State) error {
	return r.tmpl.ExecuteTemplate(w, "page", NewScreen(s))
}

// RenderContent writes only the selected view, for live replacement of the
// page content.
func (r *Renderer) RenderContent(w io.Writer, s viewmodel.State) error {
	return r.tmpl.ExecuteTemplate(w, "content", NewScreen(s))
}

// Content returns RenderContent's output as a string.
func (r *Renderer) Content(s viewmodel.State) (string, error) {
	var buf bytes.Buffer
	if err := r.RenderContent(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderText writes s as plain text.
func RenderText(w io.Writer, s viewmodel.State) error {
	screen := NewScreen(s)
	var err error
	switch screen.View {
	case ViewLoading:
		_, err = fmt.Fprintln(w, "Loading alerts...")
	case ViewError:
		_, err = fmt.Fprintln(w, screen.Error)
	default:
		for i, c := range screen.Cards {
			if i > 0 {
				if _, err = fmt.Fprintln(w); err != nil {
					return err
				}
			}
			if _, err = fmt.Fprintf(w, "%s\n  %s\n  %s\n", c.Message, c.Patient, c.Received); err != nil {
				return err
			}
		}
	}
	return err
}
