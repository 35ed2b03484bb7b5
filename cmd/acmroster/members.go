package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/mgrist/acm-roster/chapter"
)

type memberFilter struct {
	firstName string
	lastName  string
	memberTyp string
	view      string
}

func newMembersCmd(a *app) *cobra.Command {
	var f memberFilter

	cmd := &cobra.Command{
		Use:   "members",
		Short: "List roster members",
		Long: `Lists roster members. Filters match exactly and combine; --view narrows the
roster to subscribers, nonsubscribers, current or expired members.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			members, err := selectMembers(c, f)
			if err != nil {
				return err
			}
			if len(members) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), pterm.Info.Sprint("No members match."))
				return nil
			}
			return renderMembers(cmd, members)
		},
	}

	cmd.Flags().StringVar(&f.firstName, "first-name", "", "Only members with this first name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "Only members with this last name")
	cmd.Flags().StringVar(&f.memberTyp, "type", "", `Only members of this type (e.g. "Chair")`)
	cmd.Flags().StringVar(&f.view, "view", "", "subscribers, nonsubscribers, current or expired")
	return cmd
}

// selectMembers runs one roster query per criterion and keeps the members
// present in every result, in roster order.
func selectMembers(c *chapter.Chapter, f memberFilter) ([]chapter.Member, error) {
	var queries []func() ([]chapter.Member, error)

	if f.firstName != "" {
		queries = append(queries, func() ([]chapter.Member, error) { return c.MembersByFirstName(f.firstName) })
	}
	if f.lastName != "" {
		queries = append(queries, func() ([]chapter.Member, error) { return c.MembersByLastName(f.lastName) })
	}
	if f.memberTyp != "" {
		queries = append(queries, func() ([]chapter.Member, error) { return c.MembersByType(chapter.MemberType(f.memberTyp)) })
	}
	switch f.view {
	case "":
	case "subscribers":
		queries = append(queries, c.Subscribers)
	case "nonsubscribers":
		queries = append(queries, c.NonSubscribers)
	case "current":
		queries = append(queries, c.CurrentMembers)
	case "expired":
		queries = append(queries, c.ExpiredMembers)
	default:
		return nil, fmt.Errorf("invalid --view %q: expected subscribers, nonsubscribers, current or expired", f.view)
	}
	if len(queries) == 0 {
		queries = append(queries, c.AllMembers)
	}

	result, err := queries[0]()
	if err != nil {
		return nil, err
	}
	for _, query := range queries[1:] {
		other, err := query()
		if err != nil {
			return nil, err
		}
		keep := make(map[string]bool, len(other))
		for _, m := range other {
			keep[m.MemberNumber] = true
		}
		filtered := result[:0:0]
		for _, m := range result {
			if keep[m.MemberNumber] {
				filtered = append(filtered, m)
			}
		}
		result = filtered
	}
	return result, nil
}

func renderMembers(cmd *cobra.Command, members []chapter.Member) error {
	table := pterm.TableData{{"NUMBER", "NAME", "EMAIL", "TYPE", "EXPIRES", "ACM"}}
	for _, m := range members {
		table = append(table, []string{
			m.MemberNumber,
			m.FullName(),
			m.Email,
			string(m.Type),
			formatDate(m.ExpireDate),
			string(m.Subscription),
		})
	}
	return renderTable(cmd, pterm.DefaultTable.WithHasHeader(), table)
}

func newMemberCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "member <number>",
		Short: "Show one member and their status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			m, err := c.MemberByID(args[0])
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("member %s not found", args[0])
			}

			active, err := c.IsActiveMember(m)
			if err != nil {
				return err
			}
			officer, err := c.IsOfficer(m)
			if err != nil {
				return err
			}

			table := pterm.TableData{
				{"Number", m.MemberNumber},
				{"Name", m.FullName()},
				{"Email", m.Email},
				{"Affiliation", m.Affiliation},
				{"Type", string(m.Type)},
				{"Added", formatDate(m.DateAdded)},
				{"Expires", formatDate(m.ExpireDate)},
				{"ACM subscriber", yesNo(active)},
				{"Officer", yesNo(officer)},
			}
			return renderTable(cmd, &pterm.DefaultTable, table)
		},
	}
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show roster counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, done, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer done()

			counts := []struct {
				label string
				count func() (int, error)
			}{
				{"Members", c.ChapterSize},
				{"ACM subscribers", c.ACMSubSize},
				{"Current", c.ActiveSize},
				{"Expired", c.InactiveSize},
			}

			table := pterm.TableData{}
			for _, row := range counts {
				n, err := row.count()
				if err != nil {
					return err
				}
				table = append(table, []string{row.label, strconv.Itoa(n)})
			}
			return renderTable(cmd, &pterm.DefaultTable, table)
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent roster refreshes from the journal",
		Long:  `Lists journaled roster reloads, newest first. Requires ACMROSTER_JOURNAL_PATH.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.JournalPath == "" {
				return fmt.Errorf("ACMROSTER_JOURNAL_PATH is not set")
			}

			journal, done, err := a.openJournal(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			c, err := a.newChapter(journal)
			if err != nil {
				return err
			}
			records, err := c.RefreshHistory(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), pterm.Info.Sprint("No refreshes recorded."))
				return nil
			}

			table := pterm.TableData{{"STARTED", "TRIGGER", "RESULT", "MEMBERS", "DURATION"}}
			for _, rec := range records {
				result := "ok"
				if !rec.Succeeded() {
					result = rec.Error
				}
				table = append(table, []string{
					rec.StartedAt.Local().Format(time.DateTime),
					string(rec.Trigger),
					result,
					strconv.Itoa(rec.Members),
					rec.Duration.Round(time.Millisecond).String(),
				})
			}
			return renderTable(cmd, pterm.DefaultTable.WithHasHeader(), table)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of refreshes to show")
	return cmd
}

// renderTable writes table to the command's output.
func renderTable(cmd *cobra.Command, printer *pterm.TablePrinter, table pterm.TableData) error {
	rendered, err := printer.WithData(table).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(time.DateOnly)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
