package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/urfave/cli"
)

// AlertsCommand shows or clears the alert history.
var AlertsCommand = cli.Command{
	Name:  "alerts",
	Usage: "Show recent face-touch alerts",
	Flags: []cli.Flag{
		cli.IntFlag{Name: "limit, n", Value: 20, Usage: "number of alerts to show, 0 for all"},
		cli.DurationFlag{Name: "since", Value: 24 * time.Hour, Usage: "window for the alert count"},
		cli.BoolFlag{Name: "clear", Usage: "delete the alert history"},
	},
	Action: alertsAction,
}

func alertsAction(ctx *cli.Context) error {
	c, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	st, err := openStore(c)
	if err != nil {
		return err
	}
	defer st.Close()

	bg := context.Background()
	alerts := st.Alerts()
	w := ctx.App.Writer

	if ctx.Bool("clear") {
		n, err := alerts.Clear(bg)
		if err != nil {
			return err
		}
		log.Infof("alerts: removed %s", english.Plural(int(n), "alert", "alerts"))
		return nil
	}

	list, err := alerts.List(bg, ctx.Int("limit"))
	if err != nil {
		return err
	}
	total, err := alerts.Count(bg)
	if err != nil {
		return err
	}
	since := ctx.Duration("since")
	recent, err := alerts.Since(bg, time.Now().Add(-since))
	if err != nil {
		return err
	}

	for _, a := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\tmin %.4f\t%s\n",
			a.StartedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Time(a.StartedAt),
			a.Duration().Round(100*time.Millisecond),
			a.MinDistance,
			a.Mode)
	}
	fmt.Fprintf(w, "%s in total, %s in the last %s\n",
		english.Plural(total, "alert", "alerts"),
		humanize.Comma(int64(recent)),
		since)

	return nil
}
