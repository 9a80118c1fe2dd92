package specialist

import "github.com/zulandar/signalbox/internal/intent"

// SafetyName is the SAFETY specialist's identity in drafts and traces.
const SafetyName = "SAFETY"

var classCaveats = map[string]string{
	"vfd":          "DC bus capacitors stay charged after power-off. Wait out the discharge time on the drive label and verify zero voltage with a meter.",
	"servo":        "Servo amplifiers hold stored energy after power-off. Verify the charge lamp is out before touching terminals.",
	"robot":        "Stay outside the robot's work envelope; diagnose in reduced-speed mode with an enabling device.",
	"hydraulic":    "Relieve stored hydraulic pressure and block raised loads before opening any circuit.",
	"safety_relay": "Never bypass or jumper safety circuits to restore production.",
}

// Safety prepends lockout and hazard caveats. It never makes factual claims.
type Safety struct{}

func (Safety) Name() string { return SafetyName }

func (Safety) Answer(in Input) Draft {
	d := Draft{
		Specialist: SafetyName,
		Caveats: []string{
			"Safety first: isolate, lock out and tag out the equipment before any hands-on work.",
		},
	}
	if c, ok := classCaveats[in.Intent.EquipmentClass]; ok {
		d.Caveats = append(d.Caveats, c)
	}
	d.FollowUps = []string{"Confirm the work is covered by your site's permit-to-work procedure."}
	return d
}

// applies reports whether the safety specialist should be layered in.
func applies(in intent.Intent) bool {
	return in.SafetyCritical
}
