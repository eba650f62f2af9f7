package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ratebot/internal/chart"
	"ratebot/internal/metrics"
	"ratebot/internal/provider"
	"ratebot/internal/service"
)

// Command is a chat command and its menu description.
type Command struct {
	Name        string
	Description string
}

// Commands lists the chat menu in display order.
var Commands = []Command{
	{Name: "start", Description: "Start the bot and subscribe"},
	{Name: "help", Description: "List commands"},
	{Name: "usd", Description: "USD rate (NBU)"},
	{Name: "eur", Description: "EUR rate (NBU)"},
	{Name: "compare", Description: "Compare USD across sources"},
	{Name: "currency", Description: "Pick a currency to compare"},
	{Name: "history", Description: "USD rate history"},
	{Name: "chart", Description: "USD rate chart"},
	{Name: "subscribe", Description: "Subscribe to the daily rate"},
	{Name: "unsubscribe", Description: "Stop the daily rate"},
	{Name: "admin", Description: "Admin panel"},
}

// Store is the persistence the commands read and write.
type Store interface {
	Register(ctx context.Context, userID int64)
	Subscribe(ctx context.Context, userID int64)
	Unsubscribe(ctx context.Context, userID int64)
	ActiveSubscribers(ctx context.Context) []int64
	RecordUsage(ctx context.Context, command string)
	AllUsage(ctx context.Context) map[string]int64
	History(ctx context.Context, currency, source string, limit int) []service.Observation
}

// RateFetcher fetches rates and records them.
type RateFetcher interface {
	Fetch(ctx context.Context, p provider.RatesProvider, currency string) (service.Quote, bool)
	Compare(ctx context.Context, currency string, sources []provider.RatesProvider) []service.Comparison
}

// ChartRenderer turns a series into an image file.
type ChartRenderer interface {
	Render(history []chart.Point, currency string, subjectID int64) (string, bool)
}

// Sources are the rate sources available to commands.
type Sources struct {
	NBU        provider.RatesProvider
	PrivatBank provider.RatesProvider
	Monobank   provider.RatesProvider
	Minfin     provider.RatesProvider
}

// For returns the sources quoting currency, in display order.
// PrivatBank's cash feed only carries USD and EUR, so PLN and GBP fall back to NBU and Monobank.
func (s Sources) For(currency string) []provider.RatesProvider {
	var out []provider.RatesProvider
	switch currency {
	case "USD", "EUR":
		out = []provider.RatesProvider{s.NBU, s.PrivatBank, s.Monobank, s.Minfin}
	default:
		out = []provider.RatesProvider{s.NBU, s.Monobank}
	}
	filtered := out[:0]
	for _, p := range out {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// ByName returns the configured source recorded under name.
func (s Sources) ByName(name string) (provider.RatesProvider, bool) {
	for _, p := range []provider.RatesProvider{s.NBU, s.PrivatBank, s.Monobank, s.Minfin} {
		if p != nil && strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Dispatcher routes chat messages to command handlers.
type Dispatcher struct {
	store       Store
	rates       RateFetcher
	charts      ChartRenderer
	out         Messenger
	sources     Sources
	adminID     int64
	historyDays int
	username    string
	log         *zap.SugaredLogger
}

// DispatcherConfig holds the dispatcher's settings.
type DispatcherConfig struct {
	AdminID     int64
	HistoryDays int
	// BotUsername is the bot's own account name. Commands addressed to any
	// other bot ("/usd@otherbot") are ignored.
	BotUsername string
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(store Store, rates RateFetcher, charts ChartRenderer, out Messenger, sources Sources, cfg DispatcherConfig, logger *zap.SugaredLogger) *Dispatcher {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 7
	}
	return &Dispatcher{
		store:       store,
		rates:       rates,
		charts:      charts,
		out:         out,
		sources:     sources,
		adminID:     cfg.AdminID,
		historyDays: cfg.HistoryDays,
		username:    cfg.BotUsername,
		log:         logger,
	}
}

// Handle dispatches one message. Plain text naming a supported currency gets a
// comparison; any other plain text is ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) {
	cmd, target, ok := parseCommand(msg.Text)
	if !ok {
		d.handleCurrencyChoice(ctx, msg)
		return
	}
	if target != "" && !strings.EqualFold(target, d.username) {
		return
	}

	metrics.CommandsTotal.WithLabelValues(commandLabel(cmd)).Inc()
	switch cmd {
	case "start":
		d.handleStart(ctx, msg)
	case "help":
		d.store.RecordUsage(ctx, "help")
		d.reply(ctx, msg.ChatID, helpText())
	case "admin":
		d.handleAdmin(ctx, msg)
	case "usd":
		d.handleSingleRate(ctx, msg, "usd", "USD")
	case "eur":
		d.handleSingleRate(ctx, msg, "eur", "EUR")
	case "compare":
		d.store.RecordUsage(ctx, "compare")
		d.reply(ctx, msg.ChatID, d.comparisonText(ctx, "USD"))
	case "currency":
		d.handleCurrencyMenu(ctx, msg)
	case "history":
		d.handleHistory(ctx, msg)
	case "chart":
		d.handleChart(ctx, msg)
	case "subscribe":
		d.store.RecordUsage(ctx, "subscribe")
		if msg.UserID != 0 {
			d.store.Subscribe(ctx, msg.UserID)
		}
		d.reply(ctx, msg.ChatID, "You are subscribed to the daily rate broadcast!")
	case "unsubscribe":
		d.store.RecordUsage(ctx, "unsubscribe")
		if msg.UserID != 0 {
			d.store.Unsubscribe(ctx, msg.UserID)
		}
		d.reply(ctx, msg.ChatID, "You have unsubscribed from the broadcast.")
	default:
		d.reply(ctx, msg.ChatID, "Unknown command. Send /help for the list of commands.")
	}
}

func (d *Dispatcher) handleStart(ctx context.Context, msg Message) {
	d.store.RecordUsage(ctx, "start")
	if msg.UserID != 0 {
		d.store.Register(ctx, msg.UserID)
	}
	d.reply(ctx, msg.ChatID, "Hi! I track currency exchange rates 💸\n"+helpText())
}

// handleAdmin does not count towards the usage stats.
func (d *Dispatcher) handleAdmin(ctx context.Context, msg Message) {
	if d.adminID == 0 || msg.UserID != d.adminID {
		d.reply(ctx, msg.ChatID, "Access denied.")
		return
	}

	subs := d.store.ActiveSubscribers(ctx)
	usage := d.store.AllUsage(ctx)

	var b strings.Builder
	fmt.Fprintf(&b, "Admin panel\nSubscribers: %d\nCommand usage:\n", len(subs))
	if len(usage) == 0 {
		b.WriteString("no data yet")
	}
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "/%s: %d\n", name, usage[name])
	}
	d.reply(ctx, msg.ChatID, strings.TrimRight(b.String(), "\n"))
}

func (d *Dispatcher) handleSingleRate(ctx context.Context, msg Message, command, currency string) {
	d.store.RecordUsage(ctx, command)
	if d.sources.NBU == nil {
		d.reply(ctx, msg.ChatID, fmt.Sprintf("%s rate is not available right now.", currency))
		return
	}
	q, ok := d.rates.Fetch(ctx, d.sources.NBU, currency)
	if !ok {
		d.reply(ctx, msg.ChatID, fmt.Sprintf("%s rate is not available right now.", currency))
		return
	}
	d.reply(ctx, msg.ChatID, fmt.Sprintf("%s rate (NBU): %s UAH\nDate: %s", currency, service.FormatRate(q.Rate), q.Date))
}

func (d *Dispatcher) handleCurrencyMenu(ctx context.Context, msg Message) {
	d.store.RecordUsage(ctx, "currency")
	rows := [][]string{}
	for i := 0; i < len(service.SupportedCurrencies); i += 2 {
		end := min(i+2, len(service.SupportedCurrencies))
		rows = append(rows, service.SupportedCurrencies[i:end])
	}
	if err := d.out.SendKeyboard(ctx, msg.ChatID, "Choose a currency:", rows); err != nil {
		d.log.Errorw("Failed to send keyboard", "chat_id", msg.ChatID, "error", err)
	}
}

func (d *Dispatcher) handleCurrencyChoice(ctx context.Context, msg Message) {
	currency, err := service.ParseSupportedCurrency(msg.Text)
	if err != nil {
		return
	}
	d.reply(ctx, msg.ChatID, d.comparisonText(ctx, currency))
}

func (d *Dispatcher) handleHistory(ctx context.Context, msg Message) {
	d.store.RecordUsage(ctx, "history")
	hist := d.store.History(ctx, "USD", provider.SourceNBU, d.historyDays)
	if len(hist) == 0 {
		d.reply(ctx, msg.ChatID, "History is empty.")
		return
	}

	var b strings.Builder
	b.WriteString("USD rate history (NBU):")
	for _, o := range hist {
		fmt.Fprintf(&b, "\n%s: %s UAH", o.Date, service.FormatRate(o.Rate))
	}
	d.reply(ctx, msg.ChatID, b.String())
}

func (d *Dispatcher) handleChart(ctx context.Context, msg Message) {
	d.store.RecordUsage(ctx, "chart")
	hist := d.store.History(ctx, "USD", provider.SourceNBU, d.historyDays)
	if len(hist) == 0 {
		d.reply(ctx, msg.ChatID, "History is empty.")
		return
	}

	points := make([]chart.Point, 0, len(hist))
	for _, o := range hist {
		points = append(points, chart.Point{Date: o.Date, Rate: o.Rate})
	}
	path, ok := d.charts.Render(points, "USD", msg.UserID)
	if !ok {
		d.reply(ctx, msg.ChatID, "Could not generate the chart.")
		return
	}

	caption := fmt.Sprintf("USD rate (NBU), last %d days", len(points))
	if err := d.out.SendPhoto(ctx, msg.ChatID, path, caption); err != nil {
		d.log.Errorw("Failed to send chart", "chat_id", msg.ChatID, "path", path, "error", err)
	}
}

func (d *Dispatcher) comparisonText(ctx context.Context, currency string) string {
	results := d.rates.Compare(ctx, currency, d.sources.For(currency))
	return FormatComparison(currency, results)
}

// FormatComparison renders one line per source, "n/a" for failed ones.
func FormatComparison(currency string, results []service.Comparison) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s rate comparison:", currency)
	for _, r := range results {
		if r.OK {
			fmt.Fprintf(&b, "\n%s: %s UAH", r.Source, service.FormatRate(r.Rate))
		} else {
			fmt.Fprintf(&b, "\n%s: n/a", r.Source)
		}
	}
	return b.String()
}

func (d *Dispatcher) reply(ctx context.Context, chatID int64, text string) {
	if err := d.out.SendText(ctx, chatID, text); err != nil {
		d.log.Errorw("Failed to send reply", "chat_id", chatID, "error", err)
	}
}

// parseCommand extracts "usd" from "/usd", "/USD@ratebot" or "/usd extra".
// target is the bot named after "@", empty when the command is unaddressed.
func parseCommand(text string) (cmd, target string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(text)
	cmd = strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd, target = cmd[:at], cmd[at+1:]
	}
	return strings.ToLower(cmd), target, true
}

func commandLabel(cmd string) string {
	for _, c := range Commands {
		if c.Name == cmd {
			return cmd
		}
	}
	return "unknown"
}

func helpText() string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, c := range Commands {
		fmt.Fprintf(&b, "\n/%s - %s", c.Name, c.Description)
	}
	return b.String()
}
