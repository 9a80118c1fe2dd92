package specialist

import (
	"fmt"
	"strings"

	"github.com/zulandar/signalbox/internal/intent"
)

// ResearchFallbackName and ClarificationName identify the non-specialist
// drafts in traces.
const (
	ResearchFallbackName = "RESEARCH"
	ClarificationName    = "CLARIFY"
)

// ResearchFallback drafts an unverified answer when no atoms cover the
// request. It makes no factual claims.
func ResearchFallback(in Input) Draft {
	d := Draft{Specialist: ResearchFallbackName, Unverified: true}
	d.Claims = append(d.Claims, Claim{
		Text: fmt.Sprintf("The knowledge base has no verified reference for %s yet, so this answer is general guidance only.", subject(in.Intent)),
	})
	d.Claims = append(d.Claims, Claim{
		Text: "Start by recording the exact fault code and display message, then check supply voltage, wiring terminations and recent parameter or program changes.",
	})
	if len(in.Intent.FaultCodes) > 0 {
		d.FollowUps = append(d.FollowUps, fmt.Sprintf("Look up %s in the manufacturer's fault list for your exact model and firmware.", strings.Join(in.Intent.FaultCodes, ", ")))
	} else {
		d.FollowUps = append(d.FollowUps, "Look up the fault in the manufacturer's manual for your exact model and firmware.")
	}
	return d
}

// Clarification drafts a question asking for the details classification
// was missing.
func Clarification(in Input) Draft {
	var asks []string
	if in.Intent.Vendor == intent.Generic || in.Intent.Ambiguous {
		asks = append(asks, "the manufacturer and model")
	}
	if in.Intent.EquipmentClass == "" {
		asks = append(asks, "the type of equipment (drive, PLC, motor, robot...)")
	}
	if len(in.Intent.FaultCodes) == 0 {
		asks = append(asks, "any fault code or message shown")
	}
	if len(asks) == 0 {
		asks = append(asks, "what the equipment was doing when the problem started")
	}
	return Draft{
		Specialist: ClarificationName,
		Claims: []Claim{{
			Text: "I need a bit more detail to route this. Could you tell me " + joinAsks(asks) + "?",
		}},
	}
}

func joinAsks(asks []string) string {
	switch len(asks) {
	case 1:
		return asks[0]
	case 2:
		return asks[0] + " and " + asks[1]
	default:
		return strings.Join(asks[:len(asks)-1], ", ") + " and " + asks[len(asks)-1]
	}
}
