package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotalsAreOrderIndependent(t *testing.T) {
	a := CartItem{ID: "a", Product: Product{ID: "p1", UnitPrice: 10}, Quantity: 2}
	b := CartItem{ID: "b", Product: Product{ID: "p2", UnitPrice: 5}, Quantity: 3}

	for _, items := range [][]CartItem{{a, b}, {b, a}} {
		assert.Equal(t, 5, CountItems(items))
		assert.InDelta(t, 35.0, TotalPrice(items), 1e-9)
	}
}

func TestTotalsEmpty(t *testing.T) {
	assert.Equal(t, 0, CountItems(nil))
	assert.Zero(t, TotalPrice(nil))
}

func TestCartItemDecodesEmbeddedProduct(t *testing.T) {
	raw := `{"_id":"line-1","userId":"u1","productId":{"_id":"p1","name":"Mug","price":12.5,"stock":4},"quantity":2}`

	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(raw), &item))

	assert.Equal(t, "line-1", item.ID)
	assert.Equal(t, "p1", item.Product.ID)
	assert.Equal(t, "Mug", item.Product.Name)
	assert.True(t, item.Product.InStock())
	assert.InDelta(t, 25.0, item.LineTotal(), 1e-9)
}

func TestOrderItemCount(t *testing.T) {
	o := Order{Products: []OrderLine{{Quantity: 1}, {Quantity: 4}}}
	assert.Equal(t, 5, o.ItemCount())
}

func TestCredentialPresent(t *testing.T) {
	assert.False(t, Credential{FullName: "Ann"}.Present())
	assert.True(t, Credential{Token: "t"}.Present())
}

func TestCartItemDecodesBareProductID(t *testing.T) {
	var item CartItem
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"l","productId":"p9","quantity":1}`), &item))
	assert.Equal(t, "p9", item.Product.ID)
	assert.Empty(t, item.Product.Name)

	require.NoError(t, json.Unmarshal([]byte(`{"_id":"l","quantity":1}`), &item))
	assert.Empty(t, item.Product.ID)
}

func TestCartItemEncodeDecode(t *testing.T) {
	in := CartItem{ID: "l", Product: Product{ID: "p", Name: "Cap", UnitPrice: 3}, Quantity: 2}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out CartItem
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}
