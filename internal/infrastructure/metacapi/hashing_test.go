package metacapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizer_Phone(t *testing.T) {
	n := NewNormalizer("RO")

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"national format", "0722123456", "40722123456"},
		{"national with spaces", "0722 123 456", "40722123456"},
		{"international plus", "+40 722 123 456", "40722123456"},
		{"international zeros", "0040722123456", "40722123456"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Phone(tt.raw))
		})
	}
}

func TestNormalizer_PhoneFallback(t *testing.T) {
	n := NewNormalizer("RO")

	assert.Equal(t, "40123", n.fallbackPhone("0-123"))
	assert.Equal(t, "33123", n.fallbackPhone("00 33 123"))
	assert.Equal(t, "", n.fallbackPhone("n/a"))
}

func TestNormalizer_Text(t *testing.T) {
	n := NewNormalizer("RO")

	assert.Equal(t, "cluj-napoca", n.Text("  Cluj-Napoca "))
	assert.Equal(t, "", n.Text("   "))
	// decomposed S + comma below composes to the same value as the precomposed letter
	assert.Equal(t, "ștefan", n.Text("Ștefan"))
	assert.Equal(t, n.Text("Ștefan"), n.Text("Ștefan"))
	assert.Equal(t, "ro", n.Country())
}

func TestHash(t *testing.T) {
	assert.Equal(t, "", Hash(""))
	assert.Equal(t, "d6806158f75334002321a9333b6b02b9b84b51433400afb68bb197bddc2db6a5", Hash("ion"))
	assert.Equal(t, "9e392e297b2191c56078b4d7e93d75380c59279e477f81325dd12a6f14db62bd", Hash("ștefan"))
	assert.Len(t, Hash("anything"), 64)
}
