package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/titanops/titan/core"
	"github.com/titanops/titan/log"
)

var target_url = flag.String("url", "", "Target URL to fetch through the bypass ladder")
var method = flag.String("method", "GET", "HTTP method for plain requests (GET or POST)")
var post_data = flag.String("data", "", "Request body for POST requests")
var profile = flag.String("profile", "", "Identity profile to activate (see -profiles)")
var list_profiles = flag.Bool("profiles", false, "List available identity profiles")
var session_name = flag.String("session", "", "Named session to restore before and save after the run")
var proxy_url = flag.String("proxy", "", "Upstream proxy URL")
var plain = flag.Bool("plain", false, "Skip the escalation ladder and issue a direct request")
var debug_log = flag.Bool("debug", false, "Enable debug output")
var cfg_dir = flag.String("c", "", "Configuration directory path")
var version_flag = flag.Bool("v", false, "Show version")

func main() {
	flag.Parse()

	if *version_flag == true {
		log.Info("version: %s", core.VERSION)
		return
	}

	core.Banner()

	log.DebugEnable(*debug_log)
	if *debug_log {
		log.Info("debug output enabled")
	}

	if *list_profiles {
		for _, name := range core.ProfileNames() {
			p, _ := core.Lookup(name)
			log.Info("%-22s tls=%-8s ua=%s", name, p.TLSIdentity, p.UserAgent)
		}
		return
	}

	if *target_url == "" {
		log.Fatal("you need to provide a target url: ./titan -url <url>")
		return
	}

	if *cfg_dir == "" {
		usr, err := user.Current()
		if err != nil {
			log.Fatal("%v", err)
			return
		}
		*cfg_dir = filepath.Join(usr.HomeDir, ".titan")
	}

	config_path := *cfg_dir
	log.Info("loading configuration from: %s", config_path)

	cfg, err := core.NewConfig(*cfg_dir, "")
	if err != nil {
		log.Fatal("config: %v", err)
		return
	}
	if *proxy_url != "" {
		cfg.SetProxy(*proxy_url)
	}

	scraper, err := core.NewScraper(cfg)
	if err != nil {
		log.Fatal("%v", err)
		return
	}
	defer scraper.Close()

	if *profile != "" {
		if err := scraper.SetDisguise(*profile); err != nil {
			log.Fatal("%v", err)
			return
		}
	}

	if *session_name != "" {
		if err := scraper.LoadSession(*session_name); err != nil {
			log.Error("session: %v", err)
		}
	}

	ctx := context.Background()

	var resp *core.Response
	if *plain {
		switch strings.ToUpper(*method) {
		case "GET":
			resp, err = scraper.Get(ctx, *target_url)
		case "POST":
			resp, err = scraper.Post(ctx, *target_url, []byte(*post_data))
		default:
			log.Fatal("unsupported method: %s", *method)
			return
		}
	} else {
		resp, err = scraper.Bypass(ctx, *target_url)
	}
	if err != nil {
		log.Fatal("%v", err)
		return
	}

	log.Info("status: %d (%s)", resp.Status, resp.FinalURL)
	fmt.Fprintln(os.Stdout, resp.Body)

	if *session_name != "" {
		if err := scraper.SaveSession(*session_name); err != nil {
			log.Error("session: %v", err)
		} else {
			log.Success("session saved: %s", *session_name)
		}
	}
}
