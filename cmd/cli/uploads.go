package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const defaultForm = "cover"

type uploadCandidate struct {
	ID     string `json:"id"`
	Source struct {
		Name string `json:"name"`
		Type string `json:"type"`
		Size int64  `json:"size"`
	} `json:"source"`
	DataURL string `json:"data_url"`
}

type uploadState struct {
	Candidate *uploadCandidate `json:"candidate"`
	Dragging  bool             `json:"dragging"`
	Errors    []string         `json:"errors"`
}

type uploadResult struct {
	Via      string           `json:"via"`
	Accepted *uploadCandidate `json:"accepted"`
	Failures []struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"failures"`
	State uploadState `json:"state"`
}

func uploadCmd(opts *globalOpts) *cobra.Command {
	var form string
	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Stage a cover image in an upload form",
		Long: `Uploads are staged per form on the server. A later
"webtoons add --upload-form <form>" uses the accepted image as the cover.`,
	}
	cmd.PersistentFlags().StringVar(&form, "form", defaultForm, "upload form name")

	formPath := func(suffix string) string {
		return "/users/uploads/" + url.PathEscape(form) + suffix
	}

	files := &cobra.Command{
		Use:   "file <path>...",
		Short: "Submit local image files; the first valid one is kept",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var out uploadResult
			if err := c.postFiles(cmd.Context(), formPath("/files"), args, &out); err != nil {
				return err
			}
			return reportUpload(out)
		},
	}

	var asHTML, asText bool
	fromURL := &cobra.Command{
		Use:   "url <url>",
		Short: "Submit a remote image URL as a drop",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			v := url.Values{}
			switch {
			case asHTML:
				v.Set("html", fmt.Sprintf(`<img src="%s">`, args[0]))
			case asText:
				v.Set("text", args[0])
			default:
				v.Set("uri_list", args[0])
			}
			var out uploadResult
			if err := c.postForm(cmd.Context(), formPath("/drop"), v, &out); err != nil {
				return err
			}
			return reportUpload(out)
		},
	}
	fromURL.Flags().BoolVar(&asHTML, "html", false, "send as an HTML fragment")
	fromURL.Flags().BoolVar(&asText, "text", false, "send as plain text")

	var showData bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the staged upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			var st uploadState
			if err := c.doJSON(cmd.Context(), http.MethodGet, formPath(""), nil, &st); err != nil {
				return err
			}
			if !showData && st.Candidate != nil {
				st.Candidate.DataURL = truncate(st.Candidate.DataURL, 64)
			}
			return printJSON(st)
		},
	}
	show.Flags().BoolVar(&showData, "data", false, "print the full data URL")

	remove := &cobra.Command{
		Use:   "rm <candidate-id>",
		Short: "Discard the staged candidate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			return c.doJSON(cmd.Context(), http.MethodDelete, formPath("/candidates/"+url.PathEscape(args[0])), nil, nil)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Release the whole upload form",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(opts, true)
			if err != nil {
				return err
			}
			return c.doJSON(cmd.Context(), http.MethodDelete, formPath(""), nil, nil)
		},
	}

	cmd.AddCommand(files, fromURL, show, remove, clearCmd)
	return cmd
}

func reportUpload(out uploadResult) error {
	if out.Accepted != nil {
		fmt.Printf("accepted %s (%s, %d bytes) id=%s\n",
			out.Accepted.Source.Name, out.Accepted.Source.Type, out.Accepted.Source.Size, out.Accepted.ID)
	}
	for _, msg := range out.State.Errors {
		fmt.Fprintln(os.Stderr, "rejected:", msg)
	}
	if out.Accepted == nil && len(out.Failures) > 0 {
		kinds := make([]string, 0, len(out.Failures))
		for _, f := range out.Failures {
			kinds = append(kinds, f.Kind)
		}
		return fmt.Errorf("nothing accepted (%s)", strings.Join(kinds, ", "))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
