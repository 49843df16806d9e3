package engine

import (
	"testing"

	"depth_go/internal/domain"

	"github.com/stretchr/testify/assert"
)

func seqPtr(v int64) *int64 { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		last int64
		u    domain.BookUpdate
		want Decision
	}{
		{"snapshot always accepted", 100, domain.BookUpdate{Kind: domain.KindSnapshot, SequenceID: 3}, Accept},
		{"snapshot on empty ladder", 0, domain.BookUpdate{Kind: domain.KindSnapshot, SequenceID: 1}, Accept},
		{"next in line", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 11}, Accept},
		{"duplicate", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 10}, Drop},
		{"stale", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 4}, Drop},
		{"skipped one", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 12}, Gap},
		{"linked to last", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 57, PrevSequenceID: seqPtr(10)}, Accept},
		{"linked to something else", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 57, PrevSequenceID: seqPtr(40)}, Gap},
		{"linked duplicate", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 10, PrevSequenceID: seqPtr(8)}, Drop},
		{"linked stale", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 7, PrevSequenceID: seqPtr(6)}, Drop},
		{"linked heartbeat", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 10, PrevSequenceID: seqPtr(10)}, Accept},
		{"sequence reset", 10, domain.BookUpdate{Kind: domain.KindIncremental, SequenceID: 3, PrevSequenceID: seqPtr(10)}, Gap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.last, &tt.u))
		})
	}
}

func TestDecision_String(t *testing.T) {
	assert.Equal(t, "ACCEPT", Accept.String())
	assert.Equal(t, "DROP", Drop.String())
	assert.Equal(t, "GAP", Gap.String())
	assert.Equal(t, "UNKNOWN", Decision(0).String())
}
