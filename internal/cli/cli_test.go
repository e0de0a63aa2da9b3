package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/dungeon-engine/internal/catalog"
)

const ratCellar = `id: rat_cellar
name: Rat Cellar
min_level: 1
entry_cost: 10
difficulties: [normal]
waves:
  normal:
    - enemies:
        - {type: rat, count: 3}
    - boss: true
      enemies:
        - {type: rat_king, count: 1}
rewards:
  normal:
    exp: 10
    gold: 5
    items:
      - {item_id: gem, quantity: 1, drop_rate: 1.0}
      - {item_id: dust, quantity: 1, drop_rate: 0}
    bonus_exp: 100
    bonus_items:
      - {item_id: crown, quantity: 1}
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func ratCellarLoader(t *testing.T) *catalog.Loader {
	t.Helper()
	tmpl, err := catalog.Parse([]byte(ratCellar))
	require.NoError(t, err)

	loader := catalog.NewLoader()
	require.NoError(t, loader.Add(tmpl))
	return loader
}

func TestSimulateStopsWhenOutOfGold(t *testing.T) {
	report, err := Simulate(ratCellarLoader(t), SimulateOptions{
		Template:   "rat_cellar",
		Difficulty: "normal",
		Level:      1,
		Gold:       25,
		Runs:       10,
		Seed:       7,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, report.Runs)
	assert.Equal(t, 4, report.Completed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.FirstClears)
	assert.Equal(t, 16, report.Kills)
	assert.Equal(t, 4*10+100, report.Exp)
	assert.Equal(t, 20, report.GoldEarned)
	assert.Equal(t, 40, report.GoldSpent)
	assert.Equal(t, 5, report.FinalGold)
	assert.Equal(t, map[string]int{"gem": 4, "crown": 1}, report.Items)
	assert.ErrorIs(t, report.StoppedBy, catalog.ErrInsufficientGold)
}

func TestSimulateErrors(t *testing.T) {
	loader := ratCellarLoader(t)

	_, err := Simulate(loader, SimulateOptions{Template: "nope", Runs: 1})
	assert.Error(t, err)

	_, err = Simulate(loader, SimulateOptions{Template: "rat_cellar", Runs: 0})
	assert.Error(t, err)

	_, err = Simulate(loader, SimulateOptions{Template: "rat_cellar", Difficulty: "legendary", Runs: 1})
	assert.Error(t, err)

	_, err = Simulate(loader, SimulateOptions{Template: "rat_cellar", Difficulty: "hard", Level: 1, Runs: 1})
	assert.ErrorIs(t, err, catalog.ErrUnsupportedDifficulty)

	_, err = Simulate(loader, SimulateOptions{Template: "rat_cellar", Level: 0, Gold: 100, Runs: 1})
	assert.ErrorIs(t, err, catalog.ErrLevelTooLow)
}

func TestValidateCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a_cellar.yaml", ratCellar)
	writeFile(t, dir, "b_copy.yml", ratCellar)
	writeFile(t, dir, "c_broken.yaml", "id: broken\nwaves: {}\n")

	results, err := ValidateCatalog(dir)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.ErrorContains(t, results[1].Err, "duplicate template id")
	assert.Error(t, results[2].Err)

	_, err = ValidateCatalog(t.TempDir())
	assert.Error(t, err)
}

func TestCatalogCommands(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cellar.yaml", ratCellar)

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"catalog", "list", "--dir", dir, "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "rat_cellar")
	assert.Contains(t, out.String(), "normal(2)")

	out.Reset()
	root = NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"catalog", "validate", "--dir", dir, "--log-level", "error"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "ok")
}

func TestSimulateCommand(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "cellar.yaml", ratCellar)

	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetArgs([]string{"simulate", "--dir", dir, "--template", "rat_cellar", "--runs", "3", "--gold", "100", "--seed", "1", "--log-level", "error"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "3 run(s), 3 completed")
	assert.Contains(t, out.String(), "gem")
}
