package main

import (
	"fmt"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
	"github.com/phenomenon0/tennis-edge/pkg/tennis/results"
)

func printComparison(rows []odds.ComparisonRow) {
	counts := make(map[odds.JoinPhase]int)
	for _, r := range rows {
		counts[r.Phase]++
	}

	fmt.Println()
	fmt.Println("==================== COMPARISON ====================")
	fmt.Printf("  Matches:         %d\n", len(rows))
	fmt.Printf("  Direct join:     %d\n", counts[odds.JoinDirect])
	fmt.Printf("  Swapped join:    %d\n", counts[odds.JoinSwapped])
	fmt.Printf("  No quote:        %d\n", counts[odds.JoinNone])
	fmt.Println("====================================================")
}

func printBets(bets []odds.LoggedBet) {
	fmt.Println()
	fmt.Println("==================== BETS ====================")
	if len(bets) == 0 {
		fmt.Println("  No strategy triggered.")
	}
	for _, b := range bets {
		backed := b.Player1
		if b.BetOn == odds.SideP2 {
			backed = b.Player2
		}
		fmt.Printf("  %-13s %-24s @ %-6s stake %-7s trigger %.4f  (%s v %s)\n",
			b.Strategy, backed, b.DecimalOdds.String(), b.Stake.String(), b.TriggerValue, b.Player1, b.Player2)
	}
	fmt.Println("==============================================")
}

func printSummary(summaries []results.DailySummary) {
	fmt.Println()
	fmt.Println("==================== PROFIT / LOSS ====================")
	if len(summaries) == 0 {
		fmt.Println("  No settled bets.")
	}
	for _, s := range summaries {
		fmt.Printf("  %s  %-13s bets %3d  wins %3d  day %8s  total %8s\n",
			s.Date.Format(odds.DateLayout), s.Strategy, s.Bets, s.Wins,
			s.ProfitLoss.StringFixed(2), s.CumulativePL.StringFixed(2))
	}
	fmt.Println("=======================================================")
}
