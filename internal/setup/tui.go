// Package setup implements the interactive configuration wizard.
package setup

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/dipbot/config"
	"github.com/vadiminshakov/dipbot/internal/domain"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// answers holds the raw wizard input.
type answers struct {
	Platform        string
	Symbols         string
	ProfitMargin    string
	LiquidRatio     string
	MaxTotalOrders  string
	HistoryLength   string
	PollInterval    string
	InitialBalance  string
	StatusAddr      string
	WarmupInterval  string
	MaxTradesSymbol string
}

func defaultAnswers() answers {
	d := config.Defaults()
	return answers{
		Platform:        d.Platform,
		Symbols:         strings.Join(d.Symbols, ","),
		ProfitMargin:    d.ProfitMargin,
		LiquidRatio:     d.LiquidRatio,
		MaxTotalOrders:  strconv.Itoa(d.MaxTotalOrders),
		HistoryLength:   strconv.Itoa(d.PriceHistoryLength),
		PollInterval:    d.PollPriceInterval.String(),
		InitialBalance:  d.InitialBalance,
		StatusAddr:      ":8080",
		MaxTradesSymbol: strconv.Itoa(d.MaxOpenTradesPerSymbol),
	}
}

func clearScreen(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("DIPBOT CONFIG WIZARD"))
	fmt.Println(stepStyle.Render(step))
}

// RunTUI launches the terminal configuration wizard and writes the result to path.
func RunTUI(path string) error {
	a := defaultAnswers()
	var confirm bool

	clearScreen("STEP 1: PLATFORM")
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Buy the dip, sell the bounce.\n"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Select Exchange Platform").
				Options(
					huh.NewOption("Simulation", config.PlatformSimulate),
					huh.NewOption("Binance", config.PlatformBinance),
					huh.NewOption("Bybit", config.PlatformBybit),
					huh.NewOption("Hyperliquid", config.PlatformHyperliquid),
				).
				Value(&a.Platform),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 2: SYMBOLS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Trading pairs").
				Description("Comma separated, quoted in USDT (e.g. BTC-USDT,ETH-USDT)").
				Value(&a.Symbols).
				Validate(validateSymbols),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("STEP 3: RISK")
	fields := []huh.Field{
		huh.NewInput().
			Title("Profit margin").
			Description("Fraction above buy price, fees added on top (e.g. 0.01)").
			Value(&a.ProfitMargin).
			Validate(validateNonNegative),
		huh.NewInput().
			Title("Liquid ratio").
			Description("Fraction of the balance kept out of trading (0-1)").
			Value(&a.LiquidRatio).
			Validate(validateRatio),
		huh.NewInput().
			Title("Max total orders").
			Description("Outstanding order cap across all symbols (min 2)").
			Value(&a.MaxTotalOrders).
			Validate(validateMinInt(2)),
		huh.NewInput().
			Title("Max open trades per symbol").
			Value(&a.MaxTradesSymbol).
			Validate(validateMinInt(1)),
	}
	if a.Platform == config.PlatformSimulate {
		fields = append(fields, huh.NewInput().
			Title("Initial USDT balance").
			Value(&a.InitialBalance).
			Validate(validateNonNegative))
	}
	if err = huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	clearScreen("STEP 4: TIMING")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Poll price interval").
				Description("Duration string (e.g. 1s, 30s, 1m)").
				Value(&a.PollInterval).
				Validate(validateDuration),
			huh.NewInput().
				Title("Price history length").
				Description("Ticks in the rolling window (min 2)").
				Value(&a.HistoryLength).
				Validate(validateMinInt(2)),
			huh.NewInput().
				Title("Warm-up candle interval").
				Description("Prefill history from candles (e.g. 1m), empty to skip").
				Value(&a.WarmupInterval),
			huh.NewInput().
				Title("Status server address").
				Description("Empty disables the status endpoints").
				Value(&a.StatusAddr),
		),
	).Run()
	if err != nil {
		return err
	}

	clearScreen("FINAL CONFIRMATION")
	summary := fmt.Sprintf(
		"Platform: %s\nSymbols: %s\nMargin: %s\nLiquid ratio: %s\nInterval: %s\n",
		a.Platform, a.Symbols, a.ProfitMargin, a.LiquidRatio, a.PollInterval,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	tmp, err := buildConfig(a)
	if err != nil {
		return err
	}
	if err := WriteConfig(path, tmp); err != nil {
		return err
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(fmt.Sprintf("\n✓ Configuration saved to %s", path)))
	return nil
}

// buildConfig converts wizard answers into a validated on-disk config.
func buildConfig(a answers) (config.ConfigTmp, error) {
	tmp := config.Defaults()
	tmp.Platform = a.Platform
	tmp.Symbols = splitSymbols(a.Symbols)
	tmp.ProfitMargin = strings.TrimSpace(a.ProfitMargin)
	tmp.LiquidRatio = strings.TrimSpace(a.LiquidRatio)
	tmp.InitialBalance = strings.TrimSpace(a.InitialBalance)
	tmp.StatusAddr = strings.TrimSpace(a.StatusAddr)
	tmp.WarmupInterval = strings.TrimSpace(a.WarmupInterval)

	var err error
	if tmp.MaxTotalOrders, err = strconv.Atoi(strings.TrimSpace(a.MaxTotalOrders)); err != nil {
		return config.ConfigTmp{}, fmt.Errorf("invalid max total orders: %w", err)
	}
	if tmp.MaxOpenTradesPerSymbol, err = strconv.Atoi(strings.TrimSpace(a.MaxTradesSymbol)); err != nil {
		return config.ConfigTmp{}, fmt.Errorf("invalid max open trades per symbol: %w", err)
	}
	if tmp.PriceHistoryLength, err = strconv.Atoi(strings.TrimSpace(a.HistoryLength)); err != nil {
		return config.ConfigTmp{}, fmt.Errorf("invalid price history length: %w", err)
	}
	if tmp.PollPriceInterval, err = time.ParseDuration(strings.TrimSpace(a.PollInterval)); err != nil {
		return config.ConfigTmp{}, fmt.Errorf("invalid poll interval: %w", err)
	}

	if _, err := tmp.Parse(); err != nil {
		return config.ConfigTmp{}, err
	}
	return tmp, nil
}

// WriteConfig stores tmp as YAML at path.
func WriteConfig(path string, tmp config.ConfigTmp) error {
	data, err := yaml.Marshal(tmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func validateSymbols(s string) error {
	symbols := splitSymbols(s)
	if len(symbols) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	for _, sym := range symbols {
		pair, err := domain.ParsePair(sym)
		if err != nil {
			return err
		}
		if pair.To != domain.QuoteCurrency {
			return fmt.Errorf("%s must be quoted in %s", sym, domain.QuoteCurrency)
		}
	}
	return nil
}

func validateNonNegative(s string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func validateRatio(s string) error {
	if err := validateNonNegative(s); err != nil {
		return err
	}
	if decimal.RequireFromString(strings.TrimSpace(s)).GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("must be between 0 and 1")
	}
	return nil
}

func validateMinInt(min int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("must be an integer")
		}
		if n < min {
			return fmt.Errorf("must be at least %d", min)
		}
		return nil
	}
}

func validateDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
