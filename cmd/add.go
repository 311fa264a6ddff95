package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muhammad1505/idm-open/internal/checksum"
	"github.com/muhammad1505/idm-open/internal/engine"
)

var (
	addOutput    string
	addBatchFile string
	addHeaders   []string
	addCookies   []string
	addMirrors   []string
	addChecksum  string
	addProxy     string
	addUser      string
	addPass      string
	addPriority  int32
)

var addCmd = &cobra.Command{
	Use:   "add [url...]",
	Short: "Queue one or more downloads",
	Long: `Queue one or more downloads. Each URL becomes its own task; pass
--batch to also read URLs from a file (one per line, '#' comments allowed).`,
	Aliases: []string{"get", "download"},
	RunE:    runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addOutput, "output", "o", "", "destination file or directory (single URL only)")
	addCmd.Flags().StringVarP(&addBatchFile, "batch", "b", "", "file containing one URL per line")
	addCmd.Flags().StringArrayVarP(&addHeaders, "header", "H", nil, `extra request header, "Key: Value" (repeatable)`)
	addCmd.Flags().StringArrayVar(&addCookies, "cookie", nil, `cookie, "name=value" (repeatable)`)
	addCmd.Flags().StringArrayVar(&addMirrors, "mirror", nil, "alternate URL to fall back to (repeatable)")
	addCmd.Flags().StringVar(&addChecksum, "checksum", "", "expected checksum, \"type:hex\" (md5, sha1, or sha256)")
	addCmd.Flags().StringVar(&addProxy, "proxy", "", "proxy URL to route this download through")
	addCmd.Flags().StringVar(&addUser, "user", "", "basic auth username")
	addCmd.Flags().StringVar(&addPass, "pass", "", "basic auth password")
	addCmd.Flags().Int32Var(&addPriority, "priority", 0, "higher runs first among queued tasks")
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	urls := args
	if addBatchFile != "" {
		fromFile, err := readURLsFromFile(addBatchFile)
		if err != nil {
			return err
		}
		urls = append(urls, fromFile...)
	}
	if len(urls) == 0 {
		return fmt.Errorf("no URLs given; pass one or more URLs or --batch <file>")
	}
	if len(urls) > 1 && addOutput != "" {
		return fmt.Errorf("--output can only be used with a single URL")
	}

	opts, err := buildTaskOptions()
	if err != nil {
		return err
	}

	e, closeStore, err := openEngine()
	if err != nil {
		return err
	}
	defer closeStore()

	hasOptions := opts.Priority != 0 || len(opts.Headers) > 0 || len(opts.Cookies) > 0 ||
		len(opts.Mirrors) > 0 || opts.Checksum != nil || opts.ProxyURL != "" ||
		opts.AuthUser != "" || opts.AuthPass != ""

	for _, url := range urls {
		id, err := e.AddTask(url, addOutput)
		if err != nil {
			return fmt.Errorf("queuing %s: %w", url, err)
		}
		if hasOptions {
			if err := e.SetTaskOptions(id, opts); err != nil {
				return fmt.Errorf("applying options to %s: %w", url, err)
			}
		}
		fmt.Printf("queued %s  %s\n", id, url)
	}
	return nil
}

func buildTaskOptions() (engine.TaskOptions, error) {
	opts := engine.TaskOptions{
		Priority: addPriority,
		Mirrors:  addMirrors,
		ProxyURL: addProxy,
		AuthUser: addUser,
		AuthPass: addPass,
	}

	if len(addHeaders) > 0 {
		opts.Headers = make(map[string]string, len(addHeaders))
		for _, h := range addHeaders {
			k, v, ok := strings.Cut(h, ":")
			if !ok {
				return opts, fmt.Errorf("invalid --header %q, expected \"Key: Value\"", h)
			}
			opts.Headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	if len(addCookies) > 0 {
		opts.Cookies = make(map[string]string, len(addCookies))
		for _, c := range addCookies {
			k, v, ok := strings.Cut(c, "=")
			if !ok {
				return opts, fmt.Errorf("invalid --cookie %q, expected \"name=value\"", c)
			}
			opts.Cookies[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}

	if addChecksum != "" {
		typ, hex, ok := strings.Cut(addChecksum, ":")
		if !ok {
			return opts, fmt.Errorf("invalid --checksum %q, expected \"type:hex\"", addChecksum)
		}
		ct, ok := checksum.ParseType(strings.ToLower(typ))
		if !ok {
			return opts, fmt.Errorf("unknown checksum type %q", typ)
		}
		opts.Checksum = &checksum.Request{Type: ct, ExpectedHex: hex}
	}

	return opts, nil
}
