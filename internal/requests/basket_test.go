package requests

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBasketAccumulatesPerScan(t *testing.T) {
	basket := Basket{}
	basket.Add("PN-100")
	basket.Add("PN-100")
	basket.Add("PN-200")

	require.Equal(t, 2, basket["PN-100"])
	require.Equal(t, 1, basket["PN-200"])
	require.Equal(t, 3, basket.ItemCount())
	require.Equal(t, []string{"PN-100", "PN-200"}, basket.PartNumbers())
}

func TestBasketEmpty(t *testing.T) {
	require.True(t, Basket{}.Empty())
	require.False(t, Basket{"PN-1": 1}.Empty())
}
