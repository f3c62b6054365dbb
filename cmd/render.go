package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mselser95/betledger/internal/equity"
	"github.com/mselser95/betledger/internal/lifecycle"
	"github.com/mselser95/betledger/pkg/types"
	"github.com/olekukonko/tablewriter"
)

const maxTitleWidth = 48

func renderMarkets(out io.Writer, markets []types.Market, stats map[int64]types.MarketStats, now time.Time) error {
	if len(markets) == 0 {
		_, err := fmt.Fprintln(out, "No markets found.")
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("ID", "Title", "Outcomes", "Status", "Creator", "Resolver", "Closes In", "Open Offers", "Matched", "Winner")

	for _, m := range markets {
		winner := "-"
		if m.WinningOutcome != nil {
			winner = *m.WinningOutcome
		}

		err := table.Append(
			strconv.FormatInt(m.ID, 10),
			truncate(m.Title, maxTitleWidth),
			strings.Join(m.Outcomes, " / "),
			string(m.Status),
			m.CreatorID,
			m.ResolverID,
			closesIn(m, now),
			inPlay(stats[m.ID].OpenOffers, stats[m.ID].OpenVolume),
			inPlay(stats[m.ID].ActiveBets, stats[m.ID].ActiveVolume),
			winner,
		)
		if err != nil {
			return fmt.Errorf("append market row: %w", err)
		}
	}

	return table.Render()
}

func renderOffers(out io.Writer, offers []types.BetOffer) error {
	if len(offers) == 0 {
		_, err := fmt.Fprintln(out, "No offers found.")
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Bet", "Market", "Bettor", "Outcome", "Risk", "To Win", "Break-even", "For", "Status")

	for _, o := range offers {
		target := "anyone"
		if o.TargetID != nil {
			target = *o.TargetID
		}

		err := table.Append(
			strconv.FormatInt(o.ID, 10),
			strconv.FormatInt(o.MarketID, 10),
			o.BettorID,
			o.Outcome,
			money(o.OfferAmount),
			money(o.AskAmount),
			breakEven(o),
			target,
			string(o.Status),
		)
		if err != nil {
			return fmt.Errorf("append offer row: %w", err)
		}
	}

	return table.Render()
}

func renderMatched(out io.Writer, heading string, bets []types.MatchedBet) error {
	_, err := fmt.Fprintf(out, "%s (%d)\n", heading, len(bets))
	if err != nil || len(bets) == 0 {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Bet", "Market", "Bettor", "Outcome", "Risk", "Acceptor", "Acceptor Risk", "Status")

	for _, b := range bets {
		err = table.Append(
			strconv.FormatInt(b.Offer.ID, 10),
			strconv.FormatInt(b.Offer.MarketID, 10),
			b.Offer.BettorID,
			b.Offer.Outcome,
			money(b.Offer.OfferAmount),
			b.Accepted.AcceptorID,
			money(b.Offer.AskAmount),
			string(b.Accepted.Status),
		)
		if err != nil {
			return fmt.Errorf("append bet row: %w", err)
		}
	}

	return table.Render()
}

func renderParticipantBets(out io.Writer, bets types.ParticipantBets) error {
	_, err := fmt.Fprintf(out, "Bets for %s\n\nOpen offers (%d)\n", bets.Participant, len(bets.OpenOffers))
	if err != nil {
		return err
	}

	if len(bets.OpenOffers) > 0 {
		err = renderOffers(out, bets.OpenOffers)
		if err != nil {
			return err
		}
	}

	err = renderMatched(out, "\nAs bettor", bets.AsBettor)
	if err != nil {
		return err
	}

	return renderMatched(out, "\nAs acceptor", bets.AsAcceptor)
}

func renderExplanation(out io.Writer, exp equity.Explanation) error {
	o := exp.Offer
	_, err := fmt.Fprintf(out, "Bet #%d: %s risks %s on %q to win %s\n\n",
		o.ID, o.BettorID, money(o.OfferAmount), o.Outcome, money(o.AskAmount))
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("If Wins", "Bettor", "Acceptor")
	for _, p := range exp.Payoffs {
		err = table.Append(p.Outcome, signedMoney(p.Bettor), signedMoney(p.Acceptor))
		if err != nil {
			return fmt.Errorf("append payoff row: %w", err)
		}
	}

	err = table.Render()
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "\nAcceptor break-even: %s\n", displayEquity(exp.BreakEven))
	return err
}

func renderResolution(out io.Writer, result types.ResolutionResult) error {
	_, err := fmt.Fprintf(out, "Market #%d resolved: %q wins. %d bet(s) settled, %d open offer(s) cancelled.\n",
		result.MarketID, result.WinningOutcome, len(result.Settlements), result.CancelledOffers)
	if err != nil || len(result.Settlements) == 0 {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.Header("Bet", "Winner", "Loser", "Amount")
	for _, s := range result.Settlements {
		err = table.Append(strconv.FormatInt(s.BetID, 10), s.WinnerID, s.LoserID, money(s.WinAmount))
		if err != nil {
			return fmt.Errorf("append settlement row: %w", err)
		}
	}

	err = table.Render()
	if err != nil {
		return err
	}

	totals := result.Totals()
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	_, err = fmt.Fprintln(out, "\nNet:")
	if err != nil {
		return err
	}
	for _, name := range names {
		_, err = fmt.Fprintf(out, "  %s %s\n", name, signedMoney(totals[name]))
		if err != nil {
			return err
		}
	}

	return nil
}

func closesIn(m types.Market, now time.Time) string {
	if m.CloseAt == nil || !m.IsOpen() {
		return "-"
	}

	return lifecycle.Remaining(m, now).Truncate(time.Second).String()
}

func breakEven(o types.BetOffer) string {
	return displayEquity(equity.BreakEvenEquity(o.OfferAmount, o.AskAmount))
}

func displayEquity(e equity.Equity) string {
	if e.Kind == equity.KindPercent {
		return fmt.Sprintf("%.1f%%", equity.Round1(e.Percent))
	}
	return e.String()
}

// inPlay renders a count with its volume, e.g. "2 ($30.00)".
func inPlay(count int64, volume float64) string {
	return fmt.Sprintf("%d (%s)", count, money(volume))
}

func money(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

func signedMoney(amount float64) string {
	if amount >= 0 {
		return "+" + money(amount)
	}
	return "-" + money(-amount)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}
