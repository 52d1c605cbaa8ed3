package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/chat/port"
	maindomain "github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

const (
	greetingAnswer = "¡Hola! Soy el asistente virtual de la cooperativa. Puedo ayudarte con horarios, rutas, " +
		"boletos y puntos, o con el reporte de incidentes."
	generalAnswer = "No estoy seguro de haber entendido tu consulta. Puedes preguntarme por horarios, rutas, " +
		"boletos y puntos, o incidentes. Si necesitas ayuda personalizada, acércate a nuestras oficinas."
	incidentAnswer = "Lamentamos lo ocurrido. Para reportar un incidente indica la fecha, la ruta o el número de " +
		"bus y una descripción de lo sucedido. Nuestro equipo lo revisará y te contactará."
	unavailableAnswer = "En este momento no puedo consultar esa información. Intenta nuevamente en unos minutos."

	maxListed = 5
)

// cannedStrategy answers an intent with fixed text.
type cannedStrategy struct {
	intent domain.Intent
	text   string
}

func (s cannedStrategy) CanHandle(intent domain.Intent) bool { return intent == s.intent }

func (s cannedStrategy) Handle(context.Context, *domain.ChatContext) (string, error) {
	return s.text, nil
}

// NewGreetingStrategy answers greetings.
func NewGreetingStrategy() ChatStrategy {
	return cannedStrategy{intent: domain.IntentGreeting, text: greetingAnswer}
}

// NewIncidentStrategy explains how to report an incident.
func NewIncidentStrategy() ChatStrategy {
	return cannedStrategy{intent: domain.IntentIncident, text: incidentAnswer}
}

// ============================================================
// RouteStrategy: "ruta"
// ============================================================

// RouteStrategy lists the routes the cooperative runs.
type RouteStrategy struct {
	routes port.RouteDirectory
}

func NewRouteStrategy(routes port.RouteDirectory) *RouteStrategy {
	return &RouteStrategy{routes: routes}
}

func (s *RouteStrategy) CanHandle(intent domain.Intent) bool { return intent == domain.IntentRoute }

func (s *RouteStrategy) Handle(ctx context.Context, chatCtx *domain.ChatContext) (string, error) {
	routes, err := s.routes.ListRoutes(ctx)
	if err != nil {
		return "", err
	}
	if len(routes) == 0 {
		return "Por el momento no tenemos rutas publicadas.", nil
	}
	matched := matchRoutes(routes, chatCtx.Query)
	if len(matched) == 0 {
		matched = routes
	}

	var b strings.Builder
	b.WriteString("Estas son nuestras rutas:")
	for i, r := range matched {
		if i == maxListed {
			fmt.Fprintf(&b, "\n… y %d más.", len(matched)-maxListed)
			break
		}
		fmt.Fprintf(&b, "\n• %s: %s → %s", r.Code, r.Origin, r.Destination)
	}
	return b.String(), nil
}

// ============================================================
// ScheduleStrategy: "horario"
// ============================================================

// ScheduleStrategy lists departures, narrowed to the routes the message
// mentions when it names any.
type ScheduleStrategy struct {
	routes port.RouteDirectory
}

func NewScheduleStrategy(routes port.RouteDirectory) *ScheduleStrategy {
	return &ScheduleStrategy{routes: routes}
}

func (s *ScheduleStrategy) CanHandle(intent domain.Intent) bool { return intent == domain.IntentSchedule }

func (s *ScheduleStrategy) Handle(ctx context.Context, chatCtx *domain.ChatContext) (string, error) {
	routes, err := s.routes.ListRoutes(ctx)
	if err != nil {
		return "", err
	}
	matched := matchRoutes(routes, chatCtx.Query)
	if len(matched) == 0 {
		return "¿De qué ruta necesitas el horario? Indícame el origen o el destino, por ejemplo \"horario a Ambato\".", nil
	}

	var b strings.Builder
	for i, r := range matched {
		if i == maxListed {
			break
		}
		freqs, err := s.routes.ListFrequencies(ctx, r.ID)
		if err != nil {
			return "", err
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Salidas %s → %s:", r.Origin, r.Destination)
		if len(freqs) == 0 {
			b.WriteString(" sin frecuencias registradas.")
			continue
		}
		for j, f := range freqs {
			if j == maxListed {
				fmt.Fprintf(&b, "\n  … y %d salidas más.", len(freqs)-maxListed)
				break
			}
			fmt.Fprintf(&b, "\n  • %s %s", f.DayOfWeek.Label(), f.Departure)
		}
	}
	return b.String(), nil
}

// ============================================================
// PointsStrategy: "boleto" / "puntos"
// ============================================================

// PointsStrategy reports the client's points balance.
type PointsStrategy struct {
	ledger port.PointsLedger
}

func NewPointsStrategy(ledger port.PointsLedger) *PointsStrategy {
	return &PointsStrategy{ledger: ledger}
}

func (s *PointsStrategy) CanHandle(intent domain.Intent) bool { return intent == domain.IntentPoints }

func (s *PointsStrategy) Handle(ctx context.Context, chatCtx *domain.ChatContext) (string, error) {
	entries, err := s.ledger.ListPointsEntries(ctx, chatCtx.ClientID)
	if err != nil {
		return "", err
	}
	balance := maindomain.SumPoints(entries)
	if balance <= 0 {
		return "Aún no tienes puntos acumulados. Cada boleto que compras suma puntos que luego puedes canjear por premios.", nil
	}
	return fmt.Sprintf("Tienes %d puntos acumulados. Puedes canjearlos por premios desde la sección de recompensas.", balance), nil
}

// matchRoutes returns the routes whose code, origin or destination appears in
// the query.
func matchRoutes(routes []maindomain.Route, query string) []maindomain.Route {
	q := accentFolder.Replace(strings.ToLower(query))
	var out []maindomain.Route
	for _, r := range routes {
		for _, field := range []string{r.Code, r.Origin, r.Destination} {
			f := accentFolder.Replace(strings.ToLower(strings.TrimSpace(field)))
			if f != "" && strings.Contains(q, f) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
