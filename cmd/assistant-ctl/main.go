/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"
	cli "github.com/spf13/pflag"

	"github.com/loqalabs/loqa-assistant/internal/api"
	"github.com/loqalabs/loqa-assistant/internal/recording"
	"github.com/loqalabs/loqa-assistant/internal/skills"
)

const defaultURL = "http://localhost:5000"

const usage = `Usage: assistant-ctl [flags] <command> [args]

Commands:
  recordings          list saved recordings
  show <filename>     print one recording
  history             list command history
  skills              list registered skills
  logs                stream the assistant console until interrupted
`

func main() {
	var (
		baseURL  = cli.StringP("url", "u", defaultURL, "URL of the assistant monitoring server")
		format   = cli.StringP("format", "f", "table", "Output format: table, json")
		page     = cli.Int("page", 1, "History page")
		pageSize = cli.Int("page-size", 20, "History page size (max 100)")
		intent   = cli.String("intent", "", "Filter history by intent")
		source   = cli.String("source", "", "Filter history by source: classifier, llm, fallback, recording")
		failed   = cli.Bool("failed", false, "Only show failed commands")
	)
	cli.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		cli.PrintDefaults()
	}
	cli.Parse()

	c := &CtlClient{
		baseURL: strings.TrimRight(*baseURL, "/"),
		format:  *format,
		out:     os.Stdout,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	args := cli.Args()
	if len(args) == 0 {
		cli.Usage()
		os.Exit(2)
	}

	var err error
	switch args[0] {
	case "recordings":
		err = c.listRecordings()
	case "show":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: filename required for show")
			os.Exit(2)
		}
		err = c.showRecording(args[1])
	case "history":
		query := HistoryQuery{Page: *page, PageSize: *pageSize, Intent: *intent, Source: *source}
		if *failed {
			query.Success = "false"
		}
		err = c.listHistory(query)
	case "skills":
		err = c.listSkills()
	case "logs":
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt)
		err = c.streamLogs(stop)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %s\n", args[0])
		cli.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// CtlClient talks to the monitoring server
type CtlClient struct {
	baseURL string
	format  string
	out     io.Writer
	http    *http.Client
}

// HistoryQuery holds the history filters
type HistoryQuery struct {
	Page     int
	PageSize int
	Intent   string
	Source   string
	Success  string
}

func (c *CtlClient) getJSON(path string, v interface{}) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("failed to connect to assistant: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("API returned status %d: %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *CtlClient) printJSON(v interface{}) error {
	encoder := json.NewEncoder(c.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func (c *CtlClient) listRecordings() error {
	var result api.ListRecordingsResponse
	if err := c.getJSON("/api/recordings", &result); err != nil {
		return err
	}

	if c.format == "json" {
		return c.printJSON(result.Recordings)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tSIZE\tMODIFIED")
	fmt.Fprintln(w, "--------\t----\t--------")
	for _, rec := range result.Recordings {
		fmt.Fprintf(w, "%s\t%d\t%s\n", rec.Filename, rec.Size, rec.Modified.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func (c *CtlClient) showRecording(filename string) error {
	var content recording.Content
	if err := c.getJSON("/api/recordings/"+url.PathEscape(filename), &content); err != nil {
		return err
	}

	if c.format == "json" {
		return c.printJSON(content)
	}

	fmt.Fprintf(c.out, "%s (%d lines)\n\n", content.Filename, content.LineCount)
	if content.Content != "" {
		fmt.Fprintln(c.out, content.Content)
	}
	return nil
}

func (c *CtlClient) listHistory(q HistoryQuery) error {
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("page_size", strconv.Itoa(q.PageSize))
	if q.Intent != "" {
		params.Set("intent", q.Intent)
	}
	if q.Source != "" {
		params.Set("source", q.Source)
	}
	if q.Success != "" {
		params.Set("success", q.Success)
	}

	var result api.ListCommandsResponse
	if err := c.getJSON("/api/commands?"+params.Encode(), &result); err != nil {
		return err
	}

	if c.format == "json" {
		return c.printJSON(result)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tINTENT\tCONF\tOK\tTRANSCRIPT\tRESPONSE")
	fmt.Fprintln(w, "----\t------\t------\t----\t--\t----------\t--------")
	for _, event := range result.Events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\t%s\n",
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.Source,
			orDash(event.Intent),
			event.Confidence,
			formatBool(event.Success),
			event.Transcript,
			event.Response,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.out, "\npage %d of %d (%d commands)\n", result.Page, result.TotalPages, result.Total)
	return nil
}

func (c *CtlClient) listSkills() error {
	var result struct {
		Skills []skills.SkillInfo `json:"skills"`
		Total  int                `json:"total"`
	}
	if err := c.getJSON("/api/skills", &result); err != nil {
		return err
	}

	if c.format == "json" {
		return c.printJSON(result.Skills)
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tACTIONS\tUSES\tERRORS\tLAST USED")
	fmt.Fprintln(w, "----\t-------\t----\t------\t---------")
	for _, skill := range result.Skills {
		lastUsed := "never"
		if !skill.LastUsed.IsZero() {
			lastUsed = skill.LastUsed.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			skill.Name,
			strings.Join(skill.Actions, ","),
			skill.UsageCount,
			skill.ErrorCount,
			lastUsed,
		)
	}
	return w.Flush()
}

// streamLogs prints console lines until stop fires or the server closes
func (c *CtlClient) streamLogs(stop <-chan os.Signal) error {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/ws/logs"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to open log stream: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(api.StreamStart)); err != nil {
		return fmt.Errorf("failed to start log stream: %w", err)
	}

	done := make(chan struct{})
	defer close(done)

	frames := make(chan api.LogFrame)
	errs := make(chan error, 1)
	go func() {
		for {
			var frame api.LogFrame
			if err := conn.ReadJSON(&frame); err != nil {
				errs <- err
				return
			}
			select {
			case frames <- frame:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case frame := <-frames:
			fmt.Fprintln(c.out, frame.Output)
		case err := <-errs:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		case <-stop:
			_ = conn.WriteMessage(websocket.TextMessage, []byte(api.StreamStop))
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return nil
		}
	}
}

func formatBool(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
