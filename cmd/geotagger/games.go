package main

import (
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/geotagger/client/internal/backend"
	"github.com/geotagger/client/internal/geotagger"
	"github.com/geotagger/client/internal/presenter"
)

func newGamesCmd(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "games",
		Short: "List published games",
		Args:  cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			games, err := a.backend.Games(cmd.Context())
			if err != nil {
				return errors.New(backend.Message(err, "could not load games"))
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tCREATOR\tCREATED")
			for _, g := range games {
				created := "-"
				if g.CreatedAt != nil {
					created = g.CreatedAt.Format("2006-01-02")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", g.ID, g.Title, g.CreatorName(), created)
			}
			return tw.Flush()
		}),
	}
}

func newGameCmd(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "game <id>",
		Short: "Show one game",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			view, err := a.games.Get(cmd.Context(), args[0])
			if err != nil {
				return errors.New(backend.Message(err, "could not load game"))
			}
			d := view.View()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s\n", d.Game.Title)
			if d.Game.Description != "" {
				fmt.Fprintf(out, "%s\n", d.Game.Description)
			}
			fmt.Fprintf(out, "by [%s] %s\n", d.CreatorInitials, d.CreatorName)
			if d.Game.ImageURL != "" {
				fmt.Fprintf(out, "image: %s\n", d.Game.ImageURL)
			}
			fmt.Fprintf(out, "share: %s\n", geotagger.ShareURL(a.cfg.PublicURL, d.Game.ID))
			return nil
		}),
	}
}

func parseCoordinate(lat, lng string) (geotagger.Coordinate, error) {
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return geotagger.Coordinate{}, fmt.Errorf("latitude %q is not a number", lat)
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return geotagger.Coordinate{}, fmt.Errorf("longitude %q is not a number", lng)
	}
	c := geotagger.Coordinate{Lat: la, Lng: ln}
	return c, c.Validate()
}

func newGuessCmd(o *overrides) *cobra.Command {
	return &cobra.Command{
		Use:   "guess <id> <lat> <lng>",
		Short: "Guess where a game's photo was taken",
		Args:  cobra.ExactArgs(3),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			c, err := parseCoordinate(args[1], args[2])
			if err != nil {
				return err
			}

			view, err := a.games.Get(cmd.Context(), args[0])
			if err != nil {
				return errors.New(backend.Message(err, "could not load game"))
			}
			if err := view.Pick(&c); err != nil {
				return err
			}

			var userID geotagger.UserID
			if rec, ok := a.cache.Read(cmd.Context()); ok {
				userID = rec.Identity
			}

			attempt, err := view.Guess(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if !attempt.Terminal() {
				if attempt.ErrorMessage != "" {
					return errors.New(attempt.ErrorMessage)
				}
				return errors.New("guess was not submitted")
			}
			if attempt.Status == geotagger.AttemptFailed {
				return errors.New(attempt.ErrorMessage)
			}
			printFeedback(cmd, view.View().Feedback)
			return nil
		}),
	}
}

func printFeedback(cmd *cobra.Command, f *presenter.Feedback) {
	if f == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "You were %d m away: %s!\n", f.DistanceMeters, f.Tier)
	if f.PointsAwarded != nil {
		fmt.Fprintf(out, "+%d points", *f.PointsAwarded)
		if f.TotalPoints != nil {
			fmt.Fprintf(out, " (total %d)", *f.TotalPoints)
		}
		fmt.Fprintln(out)
	}
}

func newShareCmd(o *overrides) *cobra.Command {
	var png string
	var size int

	cmd := &cobra.Command{
		Use:   "share <id>",
		Short: "Print a QR code linking to a game",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			link := geotagger.ShareURL(a.cfg.PublicURL, args[0])
			q, err := qrcode.New(link, qrcode.Medium)
			if err != nil {
				return fmt.Errorf("encoding qr code: %w", err)
			}

			if png != "" {
				if err := q.WriteFile(size, png); err != nil {
					return fmt.Errorf("writing %s: %w", png, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", png)
				return nil
			}

			fmt.Fprint(cmd.OutOrStdout(), q.ToSmallString(false))
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		}),
	}

	fs := cmd.Flags()
	fs.StringVar(&png, "png", "", "write a PNG to this path instead of printing")
	fs.IntVar(&size, "size", 256, "PNG size in pixels")
	return cmd
}
