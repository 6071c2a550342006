package dispatch

import (
	"strings"

	"github.com/zjrosen/multidispatch/internal/conflict"
	"github.com/zjrosen/multidispatch/internal/log"
	"github.com/zjrosen/multidispatch/internal/pubsub"
	"github.com/zjrosen/multidispatch/internal/signature"
)

// AmbiguityReport describes the ambiguous pairs of a registry after a
// registration. Ambiguity never blocks registration or resolution.
type AmbiguityReport struct {
	Operation  string
	RegistryID string
	Pairs      []conflict.Pair
	// Suggestions holds, per pair, a signature that would supersede both,
	// or the zero Signature when none exists. Nil when suggestions are
	// disabled.
	Suggestions []signature.Signature
	Text        string
}

// Notifier receives registry diagnostics.
type Notifier interface {
	Ambiguity(report AmbiguityReport)
	Invalid(err *InvalidSignatureError)
}

// NotifierFunc adapts a function to a Notifier that only receives
// ambiguity reports.
type NotifierFunc func(report AmbiguityReport)

func (f NotifierFunc) Ambiguity(report AmbiguityReport) { f(report) }
func (f NotifierFunc) Invalid(*InvalidSignatureError)   {}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Ambiguity(AmbiguityReport)      {}
func (NopNotifier) Invalid(*InvalidSignatureError) {}

// LogNotifier writes reports to the conflict log category.
type LogNotifier struct{}

func (LogNotifier) Ambiguity(report AmbiguityReport) {
	for i, p := range report.Pairs {
		fields := []any{"operation", report.Operation, "pair", p.String()}
		if i < len(report.Suggestions) && report.Suggestions[i].Key() != "" {
			fields = append(fields, "suggest", report.Suggestions[i].Key())
		}
		log.Warn(log.CatConflict, "ambiguous signatures", fields...)
	}
}

func (LogNotifier) Invalid(err *InvalidSignatureError) {
	log.ErrorErr(log.CatRegistry, "invalid signature", err, "operation", err.Operation)
}

// Notice is the payload BrokerNotifier publishes. Exactly one of Ambiguity
// and Err is set.
type Notice struct {
	Operation string
	Ambiguity *AmbiguityReport
	Err       *InvalidSignatureError
}

// BrokerNotifier publishes reports on a pub/sub broker.
type BrokerNotifier struct {
	broker *pubsub.Broker[Notice]
}

// NewBrokerNotifier creates a notifier publishing on broker.
func NewBrokerNotifier(broker *pubsub.Broker[Notice]) *BrokerNotifier {
	return &BrokerNotifier{broker: broker}
}

func (n *BrokerNotifier) Ambiguity(report AmbiguityReport) {
	n.broker.Publish(pubsub.AmbiguityEvent, Notice{Operation: report.Operation, Ambiguity: &report})
}

func (n *BrokerNotifier) Invalid(err *InvalidSignatureError) {
	n.broker.Publish(pubsub.RejectedEvent, Notice{Operation: err.Operation, Err: err})
}

// MultiNotifier fans reports out to several notifiers in order.
type MultiNotifier []Notifier

func (m MultiNotifier) Ambiguity(report AmbiguityReport) {
	for _, n := range m {
		n.Ambiguity(report)
	}
}

func (m MultiNotifier) Invalid(err *InvalidSignatureError) {
	for _, n := range m {
		n.Invalid(err)
	}
}

// WarningText renders a human readable ambiguity warning with the
// registrations that would resolve it.
func WarningText(operation string, pairs []conflict.Pair, suggestions []signature.Signature) string {
	var b strings.Builder
	b.WriteString("Ambiguities exist in dispatched operation ")
	b.WriteString(operation)
	b.WriteString("\n\nThe following signatures may result in ambiguous behavior:\n")
	for _, p := range pairs {
		b.WriteString("\t")
		b.WriteString(p.String())
		b.WriteString("\n")
	}
	seen := make(map[string]bool, len(suggestions))
	for _, s := range suggestions {
		if s.Key() == "" || seen[s.Key()] {
			continue
		}
		if len(seen) == 0 {
			b.WriteString("\nConsider making the following additions:\n\n")
		}
		seen[s.Key()] = true
		b.WriteString("\tregister ")
		b.WriteString(operation)
		b.WriteString("(")
		b.WriteString(s.Key())
		b.WriteString(")\n")
	}
	return b.String()
}
