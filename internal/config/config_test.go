package config_test

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyctools/runtime/internal/config"
)

func buildTree() *config.GrandParent {
	root := config.NewGrandParent()
	source := config.NewParent()
	source.Add("outframe_pool_len", config.NewInt(3, 2, 32))
	source.Add("path", config.NewPath("/tmp", false))
	root.Add("source", source)

	xform := config.NewParent()
	xform.Add("gain", config.NewFloat(1.0, 0, 10))
	xform.Add("mode", config.NewEnum("fast", "fast", "accurate"))
	root.Add("transform", xform)
	return root
}

func TestCloneIsIndependent(t *testing.T) {
	root := buildTree()
	clone := root.Clone()

	source, _ := clone.Get("source")
	leaf, _ := source.Get("outframe_pool_len")
	leaf.(*config.Int).Value = 99

	origSource, _ := root.Get("source")
	origLeaf, _ := origSource.Get("outframe_pool_len")
	assert.Equal(t, int64(3), origLeaf.(*config.Int).Value, "mutating the clone must not affect the original")
}

func TestIntValidateRange(t *testing.T) {
	n := config.NewInt(5, 2, 10)
	require.NoError(t, n.Validate())
	n.Value = 1
	assert.ErrorIs(t, n.Validate(), config.ErrInvalid)
	n.Value = 11
	assert.ErrorIs(t, n.Validate(), config.ErrInvalid)
}

func TestEnumValidateChoices(t *testing.T) {
	e := config.NewEnum("fast", "fast", "accurate")
	require.NoError(t, e.Validate())
	e.Value = "bogus"
	assert.ErrorIs(t, e.Validate(), config.ErrInvalid)
}

func TestParentValidateAggregatesFailures(t *testing.T) {
	p := config.NewParent()
	p.Add("a", config.NewInt(100, 0, 10))
	p.Add("b", config.NewEnum("bogus", "x", "y"))
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a:")
	assert.Contains(t, err.Error(), "b:")
}

func TestAuditStringRendersLeavesInOrder(t *testing.T) {
	p := config.NewParent()
	p.Add("width", config.NewInt(640, 0, 4096))
	p.Add("height", config.NewInt(480, 0, 4096))
	assert.Equal(t, "    width: 640, height: 480\n", p.AuditString())
}

func TestRegisterFlagsAndApplyRoundTrip(t *testing.T) {
	root := buildTree()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindings := config.RegisterFlags(fs, root)
	require.NotEmpty(t, bindings)

	require.NoError(t, fs.Parse([]string{
		"--source.outframe_pool_len=5",
		"--transform.mode=accurate",
	}))

	next, err := config.Apply(bindings, root)
	require.NoError(t, err)

	source, _ := next.Get("source")
	poolLen, _ := source.Get("outframe_pool_len")
	assert.Equal(t, int64(5), poolLen.(*config.Int).Value)

	xform, _ := next.Get("transform")
	mode, _ := xform.Get("mode")
	assert.Equal(t, "accurate", mode.(*config.Enum).Value)

	origSource, _ := root.Get("source")
	origPoolLen, _ := origSource.Get("outframe_pool_len")
	assert.Equal(t, int64(3), origPoolLen.(*config.Int).Value, "Apply must not mutate root")
}

func TestApplyRejectsInvalidValueAtomically(t *testing.T) {
	root := buildTree()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindings := config.RegisterFlags(fs, root)

	require.NoError(t, fs.Parse([]string{
		"--source.outframe_pool_len=1",
	}))

	_, err := config.Apply(bindings, root)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
