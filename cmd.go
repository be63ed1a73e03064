package main

import "github.com/immich-tools/discburn/config"

type Command struct {
	Version struct{} `cmd:"" help:"Print version information."`
	Burn    struct {
		BackupDir     string              `help:"directory for staging directories and iso images" short:"b" default:"./immich_backups"`
		StateFile     string              `help:"progress state file path" default:"./immich_backup_state.json"`
		Capacity      config.SizeArgument `help:"disc capacity in bytes, accepts human sizes like 4.7GB" default:"4700000000"`
		Catalog       string              `help:"sqlite catalog database path, enables burned-disc bookkeeping" short:"d"`
		SkipArchived  bool                `help:"skip discs whose assets are already recorded in the catalog"`
		Select        string              `help:"non-interactive selection: 'all' or a disc number (default: interactive menu)"`
		DryRun        bool                `help:"don't copy files or create isos, just print the output"`
		UseLinks      bool                `help:"use hardlinks instead of copying when possible"`
		Workers       int                 `help:"number of parallel copy workers" default:"4"`
		ContainerPath string              `help:"asset path prefix inside the immich container" default:"/usr/src/app/upload"`
		HostPath      string              `help:"where the immich library lives on this host" default:"/mnt/backup/immich-app/library"`
		IsoPrefix     string              `help:"iso file name prefix" default:"immich_backup_dvd"`
		PgContainer   string              `help:"immich postgres container name" default:"immich_postgres"`
		PgUser        string              `help:"postgres user" default:"postgres"`
		PgDatabase    string              `help:"postgres database name" default:"immich"`
	} `cmd:"" help:"Pack gallery assets into disc-sized chunks and build iso images."`
	Plan struct {
		Capacity    config.SizeArgument `help:"disc capacity in bytes, accepts human sizes like 4.7GB" default:"4700000000"`
		Catalog     string              `help:"sqlite catalog database path, annotates already-burned discs" short:"d"`
		PgContainer string              `help:"immich postgres container name" default:"immich_postgres"`
		PgUser      string              `help:"postgres user" default:"postgres"`
		PgDatabase  string              `help:"postgres database name" default:"immich"`
	} `cmd:"" help:"Show the disc layout without writing anything."`
	Watch struct {
		Config string `help:"config file path" short:"c" required:""`
	} `cmd:"" help:"Periodically report how many unburned discs are pending."`
}
