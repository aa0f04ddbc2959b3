package flows

import "strings"

// Intent is the normalized meaning of a free-text menu reply.
type Intent int

const (
	IntentUnknown Intent = iota
	IntentPay
	IntentRegister
	IntentHelp
	IntentStatus
	IntentBack
	IntentMvola
	IntentAirtel
)

// String names the intent for logs.
func (i Intent) String() string {
	switch i {
	case IntentPay:
		return "pay"
	case IntentRegister:
		return "register"
	case IntentHelp:
		return "help"
	case IntentStatus:
		return "status"
	case IntentBack:
		return "back"
	case IntentMvola:
		return "mvola"
	case IntentAirtel:
		return "airtel"
	default:
		return "unknown"
	}
}

// intentKeywords maps lowercase substrings to intents. Menu labels are
// French; English synonyms are accepted for typed replies. Order matters:
// payment-method entries come before the generic payment entry so that
// "via mvola" does not match "paiement" first.
var intentKeywords = []struct {
	needle string
	intent Intent
}{
	{"mvola", IntentMvola},
	{"airtel", IntentAirtel},
	{"retour", IntentBack},
	{"back", IntentBack},
	{"paiement", IntentPay},
	{"payment", IntentPay},
	{"payer", IntentPay},
	{"pay", IntentPay},
	{"inscription", IntentRegister},
	{"register", IntentRegister},
	{"signup", IntentRegister},
	{"aide", IntentHelp},
	{"help", IntentHelp},
	{"statut", IntentStatus},
	{"status", IntentStatus},
	{"abonnement", IntentStatus},
}

// ParseIntent maps free text to an Intent by case-insensitive substring
// match; unmatched text is IntentUnknown.
func ParseIntent(text string) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return IntentUnknown
	}
	for _, kw := range intentKeywords {
		if strings.Contains(t, kw.needle) {
			return kw.intent
		}
	}
	return IntentUnknown
}
