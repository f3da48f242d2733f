package main

import (
	"flag"
	"log"
	"os"

	"github.com/velraen/gpk_browser/config"
	"github.com/velraen/gpk_browser/vfs"
	"github.com/velraen/gpk_browser/web"

	_ "github.com/velraen/gpk_browser/pack/gpk"
	_ "github.com/velraen/gpk_browser/pack/gpk/anm"
	_ "github.com/velraen/gpk_browser/pack/gpk/skl"
)

func main() {
	var addr, dir, settings, encoding string
	flag.StringVar(&addr, "i", ":8000", "Address of server")
	flag.StringVar(&dir, "dir", "", "Path to folder with gpk packages")
	flag.StringVar(&settings, "settings", "", "Path to yaml settings file")
	flag.StringVar(&encoding, "encoding", "", "Name of charmap encoding used for game strings")
	flag.Parse()

	if settings != "" {
		if err := config.LoadSettings(settings); err != nil {
			log.Fatal(err)
		}
	}
	if encoding != "" {
		if err := config.SetEncoding(encoding); err != nil {
			log.Fatal(err)
		}
	}

	if dir == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := web.StartServer(addr, vfs.NewDirectoryDriver(dir), "web"); err != nil {
		log.Fatal(err)
	}
}
