package tle

import (
	"io"
	"log/slog"
	"strings"
	"time"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Element sets with epoch 2024-04-09 12:00:00 UTC.
var testEpoch = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  30270-3 0  9999"
	issLine2 = "2 25544  51.6416 247.4627 0006703 130.5360 325.0288 15.49815311447215"

	noaa19Line1 = "1 33591U 09005A   24100.50000000  .00000212  00000-0  13787-3 0  9991"
	noaa19Line2 = "2 33591  99.1013 130.4710 0013755 115.6310 244.6270 14.12925427781503"

	noaa18Line1 = "1 28654U 05018A   24100.50000000  .00000325  00000-0  19841-3 0  9997"
	noaa18Line2 = "2 28654  98.9850 170.1900 0014178 190.4770 169.6110 14.12922550972400"

	meteorLine1 = "1 40069U 14037A   24100.50000000  .00000120  00000-0  73830-4 0  9994"
	meteorLine2 = "2 40069  98.4980 120.8190 0005931 216.2000 143.8780 14.21065520502003"

	cssLine1 = "1 48274U 21035A   24100.50000000  .00021453  00000-0  24811-3 0  9992"
	cssLine2 = "2 48274  41.4690  60.1450 0003456 310.2240  49.8320 15.62345678165800"

	alpha5Line1 = "1 A0001U 20001A   24100.50000000  .00001000  00000-0  10000-4 0  9992"
	alpha5Line2 = "2 A0001  53.0000 200.0000 0001500  90.0000 270.0000 15.06000000  1000"

	geoLine1 = "1 41866U 16071A   24100.50000000 -.00000100  00000-0  00000-0 0  9994"
	geoLine2 = "2 41866   0.0500  90.0000 0002000  10.0000  20.0000  1.00270000 27005"
)

func record(name, l1, l2 string) string {
	if name == "" {
		return l1 + "\n" + l2 + "\n"
	}
	return name + "\n" + l1 + "\n" + l2 + "\n"
}

func stationsText() string {
	return strings.Join([]string{
		record(issName, issLine1, issLine2),
		record("CSS (TIANHE)", cssLine1, cssLine2),
	}, "")
}

func weatherText() string {
	return strings.Join([]string{
		record("NOAA 18", noaa18Line1, noaa18Line2),
		record("NOAA 19", noaa19Line1, noaa19Line2),
		record("METEOR-M 2", meteorLine1, meteorLine2),
	}, "")
}
