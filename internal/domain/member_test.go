package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueMember_DisplayName(t *testing.T) {
	base := QueueMember{
		UID:          "u1",
		Username:     "101",
		LicensePlate: "ABC123",
		UserType:     UserTypeTaxi,
	}

	tests := []struct {
		name     string
		mutate   func(m QueueMember) QueueMember
		expected string
	}{
		{
			name:     "taxi without markers",
			mutate:   func(m QueueMember) QueueMember { return m },
			expected: "101S - ABC123",
		},
		{
			name: "kombi taxi suffix",
			mutate: func(m QueueMember) QueueMember {
				m.UserType = UserTypeKombiTaxi
				return m
			},
			expected: "101SK - ABC123",
		},
		{
			name: "vip has empty suffix",
			mutate: func(m QueueMember) QueueMember {
				m.UserType = UserTypeVIP
				return m
			},
			expected: "101 - ABC123",
		},
		{
			name: "vip kombi suffix",
			mutate: func(m QueueMember) QueueMember {
				m.UserType = UserTypeVIPKombi
				return m
			},
			expected: "101K - ABC123",
		},
		{
			name: "v-osztaly suffix",
			mutate: func(m QueueMember) QueueMember {
				m.UserType = UserTypeVOsztaly
				return m
			},
			expected: "101V - ABC123",
		},
		{
			name: "priority marker",
			mutate: func(m QueueMember) QueueMember {
				m.Markers.Priority = true
				return m
			},
			expected: "🔥 101S - ABC123",
		},
		{
			name: "priority renders before food marker",
			mutate: func(m QueueMember) QueueMember {
				m.Markers = Markers{Priority: true, FoodPhone: true}
				return m
			},
			expected: "🔥 🍔 101S - ABC123",
		},
		{
			name: "food marker only",
			mutate: func(m QueueMember) QueueMember {
				m.Markers.FoodPhone = true
				return m
			},
			expected: "🍔 101S - ABC123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.mutate(base).DisplayName())
		})
	}
}

func TestMarkers_ToggleTwiceRestoresValue(t *testing.T) {
	for _, priority := range []bool{false, true} {
		m := QueueMember{UID: "u1", Username: "7", LicensePlate: "XYZ", UserType: UserTypeVIP}
		m.Markers.Priority = priority
		original := m

		m.Markers.FoodPhone = !m.Markers.FoodPhone
		assert.NotEqual(t, original.DisplayName(), m.DisplayName())
		m.Markers.FoodPhone = !m.Markers.FoodPhone

		assert.Equal(t, original, m)
		assert.Equal(t, original.DisplayName(), m.DisplayName())
	}
}

func TestUserType_Valid(t *testing.T) {
	assert.True(t, UserTypeTaxi.Valid())
	assert.True(t, UserTypeVIP.Valid())
	assert.False(t, UserType("Limo").Valid())
	assert.Equal(t, "", UserType("Limo").Suffix())
}

func TestIndexOfUID(t *testing.T) {
	members := []QueueMember{{UID: "a"}, {UID: "b"}, {UID: "c"}}
	assert.Equal(t, 1, IndexOfUID(members, "b"))
	assert.Equal(t, -1, IndexOfUID(members, "z"))
	assert.Equal(t, -1, IndexOfUID(nil, "a"))
}

func TestQueueDocument_List(t *testing.T) {
	doc := &QueueDocument{
		Name:            QueueRepter,
		Members:         []QueueMember{{UID: "a"}},
		EmiratesMembers: []QueueMember{{UID: "b"}},
	}
	assert.Equal(t, "a", doc.List(FieldMembers)[0].UID)
	assert.Equal(t, "b", doc.List(FieldEmiratesMembers)[0].UID)

	doc.SetList(FieldEmiratesMembers, nil)
	assert.Empty(t, doc.List(FieldEmiratesMembers))

	var missing *QueueDocument
	assert.Nil(t, missing.List(FieldMembers))
}
