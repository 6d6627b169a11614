package cli

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/subcommands"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PortfolioSentinel/internal/app"
	"PortfolioSentinel/internal/config"
	"PortfolioSentinel/internal/model"
	"PortfolioSentinel/internal/pricing"
	"PortfolioSentinel/internal/recorder"
	"PortfolioSentinel/internal/store"
	"PortfolioSentinel/internal/valuation"
)

type spyNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *spyNotifier) Send(_ context.Context, title, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, title+"\n"+message)
	return s.err
}

type fixture struct {
	env      *Env
	store    *store.Manager
	notifier *spyNotifier
	out      *bytes.Buffer
	errOut   *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, err := store.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	mgr := store.NewManager(backend, store.DefaultFiles, zerolog.Nop())
	require.NoError(t, mgr.Load(context.Background()))

	src := &pricing.MockSource{Prices: map[string]float64{"MC.PA": 480, "AI.PA": 180}}
	res := pricing.NewResolver(zerolog.Nop(), src)
	res.History = src

	f := &fixture{store: mgr, notifier: &spyNotifier{}, out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	f.env = &Env{
		Open: func(context.Context) (*app.App, error) {
			return &app.App{
				Config:   &config.Config{},
				Store:    mgr,
				Prices:   res,
				Engine:   valuation.NewEngine(valuation.DefaultLowRatio, 0),
				Notifier: f.notifier,
				Recorder: recorder.NewNoopRecorder(),
				Log:      zerolog.Nop(),
			}, nil
		},
		Out: f.out,
		Err: f.errOut,
	}
	return f
}

func (f *fixture) run(t *testing.T, args ...string) subcommands.ExitStatus {
	t.Helper()
	fs := flag.NewFlagSet("portfolio", flag.ContinueOnError)
	commander := subcommands.NewCommander(fs, "portfolio")
	Register(commander, f.env)
	require.NoError(t, fs.Parse(args))
	return commander.Execute(context.Background())
}

func TestCheck_SendsBatchedAlerts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddHolding(ctx, model.Holding{Name: "LVMH", Ticker: "MC.PA", CostBasis: 700, Quantity: 10, AlertLow: 490}))
	require.NoError(t, f.store.AddHolding(ctx, model.Holding{Name: "Air Liquide", Ticker: "AI.PA", CostBasis: 150, Quantity: 5}))

	status := f.run(t, "check")

	assert.Equal(t, subcommands.ExitSuccess, status)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "LVMH (MC.PA)")
	assert.NotContains(t, f.notifier.messages[0], "AI.PA")
	assert.Contains(t, f.out.String(), "LVMH")
}

func TestCheck_NoAlerts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.AddHolding(context.Background(), model.Holding{Ticker: "AI.PA", CostBasis: 150, Quantity: 5}))

	assert.Equal(t, subcommands.ExitSuccess, f.run(t, "check"))
	assert.Empty(t, f.notifier.messages)
	assert.Contains(t, f.out.String(), "Aucune alerte")
}

func TestCheck_DeliveryFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = assert.AnError
	require.NoError(t, f.store.AddHolding(context.Background(), model.Holding{Ticker: "MC.PA", CostBasis: 700, Quantity: 1}))

	assert.Equal(t, subcommands.ExitSuccess, f.run(t, "check"))
	assert.Contains(t, f.errOut.String(), "could not be delivered")
}

func TestImportExport(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "in.csv")
	csv := "Nom,ISIN,Ticker,PRU,Qté,Date_Achat,Seuil_Haut,Seuil_Bas,Prix_Manuel\n" +
		"LVMH,FR0000121014,MC.PA,500,10,2024-01-15,800,,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o600))

	assert.Equal(t, subcommands.ExitSuccess, f.run(t, "import", path))
	assert.Contains(t, f.out.String(), "1 position(s)")
	require.Len(t, f.store.Holdings(), 1)

	out := filepath.Join(t.TempDir(), "out.csv")
	assert.Equal(t, subcommands.ExitSuccess, f.run(t, "export", "-o", out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Nom,ISIN,Ticker,PRU"))
	assert.Contains(t, string(data), "MC.PA")
}

func TestImport_Errors(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, subcommands.ExitUsageError, f.run(t, "import"))

	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("Nom,PRU\nx,1\n"), 0o600))
	assert.Equal(t, subcommands.ExitFailure, f.run(t, "import", path))
	assert.Empty(t, f.store.Holdings())
}

func TestReportRaw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddHolding(ctx, model.Holding{Name: "Air Liquide", Ticker: "AI.PA", CostBasis: 150, Quantity: 5}))

	assert.Equal(t, subcommands.ExitSuccess, f.run(t, "report", "-raw"))
	assert.Contains(t, f.out.String(), "# Portefeuille du")
	assert.Contains(t, f.out.String(), "Air Liquide")
}

func TestHistory(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, subcommands.ExitSuccess, f.run(t, "history", "-raw", "-period", "1mo", "ai.pa"))
	assert.Contains(t, f.out.String(), "# AI.PA (1mo, 30 séances)")
	assert.Contains(t, f.out.String(), "RSI 14")

	assert.Equal(t, subcommands.ExitUsageError, f.run(t, "history", "-period", "2w", "AI.PA"))
	assert.Equal(t, subcommands.ExitFailure, f.run(t, "history", "-raw", "UNKNOWN"))
}
