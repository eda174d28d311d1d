package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/iliyamo/family-kitchen/internal/model"
	"github.com/iliyamo/family-kitchen/internal/state"
	"github.com/iliyamo/family-kitchen/internal/syncer"
)

func printSummary(k *syncer.Coordinator) { printSnapshot(os.Stdout, k.Snapshot()) }

func printSnapshot(out io.Writer, s state.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if s.Profile != nil {
		fmt.Fprintf(w, "%s (%s), family %s, %s\n", s.Profile.Name, s.Profile.Role, s.Profile.FamilyCode, s.Date)
	}
	if s.Hydrated && s.SyncedAt.IsZero() {
		fmt.Fprintln(w, "(offline copy, not synced yet)")
	}

	for _, slot := range model.Slots {
		fmt.Fprintf(w, "\n%s\n", slot)
		if c := s.ConfirmedFor(slot); c != nil {
			fmt.Fprintf(w, "  confirmed:\t%s\tready %s\t[%s]\n", mealName(s, c.MealID, c.MealData), c.ReadyAt, c.ID)
		}
		for _, sel := range s.SelectionsFor(slot) {
			who := sel.UserID
			if sel.ProfileData != nil {
				who = sel.ProfileData.Name
			}
			fmt.Fprintf(w, "  %s wants:\t%s\n", who, mealName(s, sel.MealID, sel.MealData))
		}
	}

	fmt.Fprintln(w, "\nMeals")
	for _, m := range s.Meals {
		fmt.Fprintf(w, "  %s\t%s\t[%s]\n", m.Name, m.Category, m.ID)
	}

	fmt.Fprintf(w, "\nPantry (%d low)\n", len(s.LowStock()))
	for _, it := range s.Inventory {
		flag := ""
		if it.LowStock() {
			flag = "low"
		}
		fmt.Fprintf(w, "  %s\t%d %s\t%s\t[%s]\n", it.ItemName, it.Quantity, it.Unit, flag, it.ID)
	}

	fmt.Fprintf(w, "\nCart (%d to buy)\n", s.OpenCartCount())
	for _, c := range s.Cart {
		box := "[ ]"
		if c.IsPurchased {
			box = "[x]"
		}
		fmt.Fprintf(w, "  %s %s\tx%d\t[%s]\n", box, c.ItemName, c.Quantity, c.ID)
	}

	if n := len(s.Messages); n > 0 {
		fmt.Fprintln(w, "\nChat")
		from := max(0, n-5)
		for _, m := range s.Messages[from:] {
			who := m.SenderID
			if m.ProfileData != nil {
				who = m.ProfileData.Name
			}
			fmt.Fprintf(w, "  %s:\t%s\n", who, m.Message)
		}
	}
}

// mealName prefers the live catalogue name and falls back to the copy
// stored on the row.
func mealName(s state.Snapshot, id string, snap *model.MealSnapshot) string {
	if m := s.MealByID(id); m != nil {
		return m.Name
	}
	if snap != nil {
		return snap.Name
	}
	return id
}
