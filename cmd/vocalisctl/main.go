// Command vocalisctl is a small CLI against a vocalis server. It discovers
// a reachable host from a candidate list before every session, the same way
// the mobile app does.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vocalis-app/vocalis/internal/client"
	"github.com/vocalis-app/vocalis/internal/config"
	"github.com/vocalis-app/vocalis/internal/log"
)

const usage = `usage: vocalisctl [flags] <command> [args]

commands:
  health              show the discovered server's health document
  list                list recordings
  get <id>            show one recording
  upload <file>       upload an audio file
  delete <id>         delete a recording

flags:
`

var (
	hostsFlag    = flag.String("hosts", "", "comma-separated candidate base URLs (default $VOCALIS_HOSTS)")
	fallbackFlag = flag.String("fallback", "", "base URL used when no candidate answers")
	tokenFlag    = flag.String("token", "", "bearer token (default $VOCALIS_TOKEN)")
	titleFlag    = flag.String("title", "", "title for upload")
	descFlag     = flag.String("description", "", "description for upload")
	timeoutFlag  = flag.Duration("timeout", 2*time.Minute, "overall command timeout")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	log.Configure(log.Config{Level: "warn", Service: "vocalisctl", Output: os.Stderr})

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "vocalisctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	c := buildClient()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "health":
		doc, err := c.Health(ctx)
		if err != nil {
			return err
		}
		return printJSON(doc)

	case "list":
		recs, err := c.Recordings(ctx)
		if err != nil {
			return err
		}
		for _, r := range recs {
			fmt.Printf("%s  %8d bytes  %s  %s\n", r.ID, r.SizeBytes, r.CreatedAt.Format(time.RFC3339), r.Title)
		}
		return nil

	case "get":
		if len(rest) != 1 {
			return fmt.Errorf("get needs exactly one id")
		}
		rec, err := c.Recording(ctx, rest[0])
		if err != nil {
			return err
		}
		return printJSON(rec)

	case "upload":
		if len(rest) != 1 {
			return fmt.Errorf("upload needs exactly one file")
		}
		return upload(ctx, c, rest[0])

	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("delete needs exactly one id")
		}
		if err := c.Delete(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", rest[0])
		return nil

	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func buildClient() *client.Client {
	hosts := *hostsFlag
	if hosts == "" {
		hosts = config.ParseString("VOCALIS_HOSTS", "http://localhost:3001")
	}
	token := *tokenFlag
	if token == "" {
		token = config.ParseString("VOCALIS_TOKEN", "")
	}

	candidates := make([]string, 0)
	for _, h := range strings.Split(hosts, ",") {
		if trimmed := strings.TrimSpace(h); trimmed != "" {
			candidates = append(candidates, trimmed)
		}
	}

	disc := client.NewDiscovery(client.DiscoveryConfig{
		Candidates: candidates,
		Fallback:   *fallbackFlag,
	}, nil)
	return client.New(disc, token, nil)
}

func upload(ctx context.Context, c *client.Client, path string) error {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied local file
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	title := *titleFlag
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	rec, err := c.Upload(ctx, client.UploadParams{
		Title:       title,
		Description: *descFlag,
		Filename:    filepath.Base(path),
		ContentType: contentTypeForUpload(path),
		Data:        f,
	})
	if err != nil {
		return err
	}
	return printJSON(rec)
}

func contentTypeForUpload(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m4a", ".mp4", ".aac":
		return "audio/mp4"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg", ".oga":
		return "audio/ogg"
	case ".webm":
		return "audio/webm"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
