package headcount

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evermore-events/backend/internal/models"
)

func intPtr(v int) *int { return &v }

func TestClamp(t *testing.T) {
	on := models.WeddingConfig{PlusOnesEnabled: true, MaxPartySize: 3}
	off := models.WeddingConfig{PlusOnesEnabled: false, MaxPartySize: 6}

	tests := []struct {
		name      string
		requested int
		guest     *int
		cfg       models.WeddingConfig
		want      int
	}{
		{"plus ones off forces one", 5, intPtr(10), off, 1},
		{"plus ones off negative", -4, nil, off, 1},
		{"config max binds", 10, intPtr(4), on, 3},
		{"guest cap binds", 10, intPtr(2), on, 2},
		{"no guest cap", 10, nil, on, 3},
		{"zero guest cap treated as absent", 10, intPtr(0), on, 3},
		{"negative guest cap treated as absent", 2, intPtr(-1), on, 2},
		{"below one", 0, nil, on, 1},
		{"negative input", -100, intPtr(4), on, 1},
		{"in range", 2, intPtr(4), on, 2},
		{"bad config max", 5, nil, models.WeddingConfig{PlusOnesEnabled: true, MaxPartySize: 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.requested, tt.guest, tt.cfg))
		})
	}
}

func TestValidate_AlwaysWithinBounds(t *testing.T) {
	inputs := []int{-1 << 30, -5, -1, 0, 1, 2, 3, 7, 100, 1 << 30}
	guests := []*int{nil, intPtr(-2), intPtr(0), intPtr(1), intPtr(2), intPtr(5), intPtr(50)}
	for _, plusOnes := range []bool{true, false} {
		for _, maxSize := range []int{-1, 0, 1, 2, 4, 10} {
			cfg := models.WeddingConfig{PlusOnesEnabled: plusOnes, MaxPartySize: maxSize}
			for _, g := range guests {
				events := make([]EventHeadcount, 0, len(inputs))
				for _, in := range inputs {
					events = append(events, EventHeadcount{EventID: "e", Headcount: in, Status: models.StatusPending})
				}
				got := Validate(events, g, cfg)
				limit := Limit(g, cfg)
				for _, e := range got {
					assert.GreaterOrEqual(t, e.Headcount, 1)
					assert.LessOrEqual(t, e.Headcount, limit)
					if !plusOnes {
						assert.Equal(t, 1, e.Headcount)
					}
				}
				assert.Equal(t, got, Validate(got, g, cfg), "validation must be idempotent")
			}
		}
	}
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	in := []EventHeadcount{{EventID: "a", Headcount: 9, Status: models.StatusAccepted}}
	out := Validate(in, nil, models.WeddingConfig{PlusOnesEnabled: true, MaxPartySize: 2})
	assert.Equal(t, 9, in[0].Headcount)
	assert.Equal(t, 2, out[0].Headcount)
	assert.Equal(t, models.StatusAccepted, out[0].Status)
}

func TestValidateDefs(t *testing.T) {
	defs := []models.EventDef{{Headcount: 10}, {Headcount: 0}}
	ValidateDefs(defs, intPtr(4), models.WeddingConfig{PlusOnesEnabled: true, MaxPartySize: 3})
	assert.Equal(t, 3, defs[0].Headcount)
	assert.Equal(t, 1, defs[1].Headcount)
}
