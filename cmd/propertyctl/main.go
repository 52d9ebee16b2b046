// Command propertyctl talks to a running property-server and inspects the
// crew it runs.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/KamdynS/property-crew/property"
	"github.com/KamdynS/property-crew/workflow"
)

const version = "v0.1.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	var err error
	switch args[0] {
	case "lookup":
		err = handleLookup(args[1:], stdout)
	case "url":
		err = handleURL(args[1:], stdout)
	case "plan":
		err = handlePlan(args[1:], stdout)
	case "version":
		fmt.Fprintf(stdout, "propertyctl version %s\n", version)
	case "help":
		printUsage(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "propertyctl - property research crew CLI %s\n\n", version)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  propertyctl lookup <address> [--host localhost:5000] [--timeout 10m]")
	fmt.Fprintln(w, "  propertyctl url <address>      Print the Redfin page the crew scrapes")
	fmt.Fprintln(w, "  propertyctl plan [--dir TD|LR] Print the task pipeline as a Mermaid flowchart")
	fmt.Fprintln(w, "  propertyctl version            Show version information")
	fmt.Fprintln(w, "  propertyctl help               Show this help message")
}

// parseAddress accepts flags before or after the address words.
func parseAddress(fs *flag.FlagSet, args []string) (string, error) {
	var words []string
	for len(args) > 0 {
		if err := fs.Parse(args); err != nil {
			return "", err
		}
		if fs.NArg() == 0 {
			break
		}
		words = append(words, fs.Arg(0))
		args = fs.Args()[1:]
	}
	address := strings.Join(words, " ")
	if address == "" {
		return "", fmt.Errorf("address is required")
	}
	return address, nil
}

func handleURL(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("url", flag.ContinueOnError)
	address, err := parseAddress(fs, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, property.RedfinURL(address))
	return nil
}

func handlePlan(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	dir := fs.String("dir", "TD", "Mermaid direction (TD, LR, BT, RL)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := property.NewCrew("{address}", property.Toolset{})
	labels := make(map[string]string, len(c.Tasks))
	for _, t := range c.Tasks {
		labels[t.Kind.String()] = fmt.Sprintf("%s<br/>%s", t.Kind, t.Agent)
	}
	fmt.Fprint(w, c.Plan().MermaidFlowchart(workflow.WithDirection(*dir), workflow.WithStepLabels(labels)))
	return nil
}

func handleLookup(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)
	host := fs.String("host", "localhost:5000", "Host of the running server")
	timeout := fs.Duration("timeout", 10*time.Minute, "Request timeout")
	address, err := parseAddress(fs, args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	body, err := httpGet(ctx, lookupURL(*host, address))
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, body, "", "  "); err != nil {
		_, err = w.Write(body)
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(w)
	return err
}

func lookupURL(host, address string) string {
	base := host
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/") + "/api/property?" + url.Values{"address": {address}}.Encode()
}

func httpGet(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return b, nil
}
