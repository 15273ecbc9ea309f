package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"webtoonhub/pkg/models"
)

type webtoonList struct {
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
	Items  []models.Webtoon `json:"items"`
}

func webtoonsCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "webtoons",
		Aliases: []string{"w"},
		Short:   "List and edit tracked webtoons",
	}
	cmd.AddCommand(
		webtoonsListCmd(opts),
		webtoonsShowCmd(opts),
		webtoonsAddCmd(opts),
		webtoonsUpdateCmd(opts),
		webtoonsRemoveCmd(opts),
		webtoonsStatsCmd(opts),
	)
	return cmd
}

func webtoonsListCmd(opts *globalOpts) *cobra.Command {
	var (
		q, status, tag string
		limit, offset  int
		asJSON         bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your webtoons, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			v := url.Values{}
			if q != "" {
				v.Set("q", q)
			}
			if status != "" {
				v.Set("status", status)
			}
			if tag != "" {
				v.Set("tag", tag)
			}
			v.Set("limit", strconv.Itoa(limit))
			v.Set("offset", strconv.Itoa(offset))

			var out webtoonList
			if err := c.doJSON(cmd.Context(), http.MethodGet, "/users/webtoons?"+v.Encode(), nil, &out); err != nil {
				return err
			}
			if asJSON {
				return printJSON(out)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSTATUS\tTAGS")
			for _, w := range out.Items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", w.ID, w.Title, w.Status, strings.Join(w.Tags, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("%d of %d\n", len(out.Items), out.Total)
			return nil
		},
	}
	cmd.Flags().StringVarP(&q, "query", "q", "", "title search")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size (max 100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "page offset")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")
	return cmd
}

func webtoonsShowCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one webtoon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var w models.Webtoon
			if err := c.doJSON(cmd.Context(), http.MethodGet, "/users/webtoons/"+url.PathEscape(args[0]), nil, &w); err != nil {
				return err
			}
			return printJSON(w)
		},
	}
}

type webtoonFlags struct {
	title, url, status, image, uploadForm string
	tags                                  []string
}

func (f *webtoonFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "title")
	cmd.Flags().StringVar(&f.url, "url", "", "series URL (http or https)")
	cmd.Flags().StringVar(&f.status, "status", "", "in-progress, reading, on-hold, completed, cancelled")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&f.image, "image", "", "cover image URL or data URL")
	cmd.Flags().StringVar(&f.uploadForm, "upload-form", "", "use the accepted upload from this form as the cover")
}

// body only includes flags the user actually set.
func (f *webtoonFlags) body(cmd *cobra.Command) map[string]any {
	out := map[string]any{}
	set := func(flag, key string, v any) {
		if cmd.Flags().Changed(flag) {
			out[key] = v
		}
	}
	set("title", "title", f.title)
	set("url", "url", f.url)
	set("status", "status", f.status)
	set("tag", "tags", f.tags)
	set("image", "image", f.image)
	set("upload-form", "upload_form", f.uploadForm)
	return out
}

func webtoonsAddCmd(opts *globalOpts) *cobra.Command {
	var f webtoonFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Track a new webtoon",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var w models.Webtoon
			if err := c.doJSON(cmd.Context(), http.MethodPost, "/users/webtoons", f.body(cmd), &w); err != nil {
				return err
			}
			fmt.Printf("added %s (%s)\n", w.Title, w.ID)
			return nil
		},
	}
	f.bind(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func webtoonsUpdateCmd(opts *globalOpts) *cobra.Command {
	var f webtoonFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a webtoon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var w models.Webtoon
			path := "/users/webtoons/" + url.PathEscape(args[0])
			if err := c.doJSON(cmd.Context(), http.MethodPatch, path, f.body(cmd), &w); err != nil {
				return err
			}
			return printJSON(w)
		},
	}
	f.bind(cmd)
	return cmd
}

func webtoonsRemoveCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Stop tracking a webtoon",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			if err := c.doJSON(cmd.Context(), http.MethodDelete, "/users/webtoons/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Println("deleted")
			return nil
		},
	}
}

func webtoonsStatsCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count webtoons by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var out struct {
				Total    int            `json:"total"`
				ByStatus map[string]int `json:"by_status"`
			}
			if err := c.doJSON(cmd.Context(), http.MethodGet, "/users/webtoons/stats", nil, &out); err != nil {
				return err
			}
			fmt.Printf("total: %d\n", out.Total)
			for _, s := range []string{"in-progress", "reading", "on-hold", "completed", "cancelled"} {
				fmt.Printf("  %-13s %d\n", s, out.ByStatus[s])
			}
			return nil
		},
	}
}
