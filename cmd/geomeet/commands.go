package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dkeye/GeoMeet/internal/adapters/feed"
	router "github.com/dkeye/GeoMeet/internal/adapters/http"
	"github.com/dkeye/GeoMeet/internal/app"
	"github.com/dkeye/GeoMeet/internal/core"
	"github.com/dkeye/GeoMeet/internal/domain"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local companion API and web feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := c.cfg

			session, err := newSession(ctx, cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			updates := feed.NewFeedWSController(session, feed.Options{
				ReadLimit:  cfg.ReadLimit,
				PingPeriod: cfg.PingPeriod,
			})
			r := router.SetupRouter(ctx, cfg, session, updates)
			addr := fmt.Sprintf(":%d", cfg.Port)

			srv := &http.Server{
				Addr:    addr,
				Handler: r,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("client_id", string(session.ClientID())).Msg("GeoMeet companion started")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
			}
			log.Info().Msg("Shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Server forced to shutdown")
			}
			log.Info().Msg("Server exited gracefully")
			return nil
		},
	}
	cmd.Flags().IntP("port", "p", 0, "port to listen on (env: GEOMEET_PORT)")
	_ = c.v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}

func newCreateCmd(c *cli) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room, join it and print its invite link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			session, err := newSession(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			roomID, err := session.CreateRoom(cmd.Context(), c.cfg.DisplayName, password)
			if err != nil {
				return err
			}
			link, err := session.ShareLink(c.cfg.ShareBaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room: %s\nlink: %s\n", roomID, link)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "room password, empty for an open room")
	return cmd
}

func newWatchCmd(c *cli) *cobra.Command {
	var (
		password string
		share    bool
	)
	cmd := &cobra.Command{
		Use:   "watch ROOM",
		Short: "Join a room and print membership and readiness as they change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := newSession(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.JoinRoom(ctx, domain.RoomID(args[0]), c.cfg.DisplayName, password); err != nil {
				return err
			}
			if share {
				if at, err := session.ShareLocation(ctx); err != nil {
					log.Warn().Err(err).Msg("location not shared")
				} else {
					log.Info().Float64("lat", at.Lat).Float64("lon", at.Lon).Msg("location shared")
				}
			}

			updates, unsubscribe := session.Subscribe(8)
			defer unsubscribe()

			var last string
			for {
				select {
				case <-ctx.Done():
					return nil
				case v, ok := <-updates:
					if !ok {
						return nil
					}
					line := describe(v)
					if line != last {
						fmt.Fprintln(cmd.OutOrStdout(), line)
						last = line
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "room password")
	cmd.Flags().BoolVar(&share, "share", false, "share the current location once after joining")
	return cmd
}

func newVenuesCmd(c *cli) *cobra.Command {
	var (
		password string
		keyword  string
		radius   int
		wait     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "venues ROOM",
		Short: "Join a room and search for venues around the members sharing a location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := newSession(ctx, c.cfg)
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.JoinRoom(ctx, domain.RoomID(args[0]), c.cfg.DisplayName, password); err != nil {
				return err
			}
			if err := awaitMembers(ctx, session, wait); err != nil {
				return err
			}

			if keyword == "" {
				keyword = c.cfg.Venues.Keyword
			}
			if radius <= 0 {
				radius = c.cfg.Venues.Radius
			}
			venues, err := session.FindVenues(ctx, keyword, radius)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "found %d venues\n", len(venues))
			for _, v := range venues {
				fmt.Fprintf(out, "- %s", v.Name)
				if v.Address != "" {
					fmt.Fprintf(out, " (%s)", v.Address)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "room password")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "what to look for (env: GEOMEET_VENUES_KEYWORD)")
	cmd.Flags().IntVarP(&radius, "radius", "r", 0, "search radius in meters (env: GEOMEET_VENUES_RADIUS)")
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "how long to wait for the first membership snapshot")
	return cmd
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print this device's client id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, cleanup, err := openIdentity(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

func newLinkCmd(c *cli) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "link ROOM",
		Short: "Print the invite link of a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link, err := core.ShareLink(c.cfg.ShareBaseURL, domain.Room{ID: domain.RoomID(args[0]), Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "room password to embed")
	return cmd
}

// awaitMembers blocks until the first membership snapshot of the active
// room has arrived.
func awaitMembers(ctx context.Context, session *app.Coordinator, wait time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	updates, unsubscribe := session.Subscribe(4)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return errors.New("no membership snapshot received")
		case v, ok := <-updates:
			if !ok {
				return app.ErrClosed
			}
			if len(v.Members) > 0 {
				return nil
			}
		}
	}
}

func describe(v app.View) string {
	sharing := len(core.SharingPoints(v.Members))
	return fmt.Sprintf("[%s] room=%s members=%d sharing=%d status=%s", v.State, v.RoomID, len(v.Members), sharing, v.Status)
}
