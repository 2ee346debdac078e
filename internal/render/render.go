
package render

import (
	"strconv"
	"strings"

	"github.com/Armin-kho/doviz-board/internal/comparison"
	"github.com/Armin-kho/doviz-board/internal/currency"
	"github.com/Armin-kho/doviz-board/internal/snapshot"
	"github.com/Armin-kho/doviz-board/internal/sources"
	"github.com/Armin-kho/doviz-board/internal/utils"
)

// DefaultTemplate is used when no template is configured. Placeholders:
// {CURRENCIES}, {GOLD}, {DATETIME}, {DATE}, {TIME}.
const DefaultTemplate = "📊 Döviz Kurları\n\n{CURRENCIES}\n\n{GOLD}\n\n🕒 {DATETIME}"

var sourceLabels = map[sources.SourceName]string{
	sources.SourceAhlatci: "Ahlatcı",
	sources.SourceHarem:   "Harem",
	sources.SourceHakan:   "Hakan",
	sources.SourceCarsi:   "Çarşı",
}

func SourceLabel(s sources.SourceName) string {
	if l, ok := sourceLabels[s]; ok {
		return l
	}
	return string(s)
}

type Line struct {
	Code currency.Code
	Text string
}

type Output struct {
	Text  string
	Lines []Line
}

// BuildMessage renders a snapshot into plain text using tmpl.
func BuildMessage(snap *snapshot.Snapshot, tmpl string) Output {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}

	lines := []Line{}
	var texts []string
	for _, code := range snap.Currencies {
		avg, ok := snap.Averages[code]
		if !ok || (!avg.HasBuy() && !avg.HasSell()) {
			continue
		}
		ln := Line{Code: code, Text: currencyLine(code, snap.Names[code], snap.Icons[code], avg, snap.BestRates[code].BestBuy)}
		lines = append(lines, ln)
		texts = append(texts, ln.Text)
	}

	body := tmpl
	body = strings.ReplaceAll(body, "{CURRENCIES}", strings.Join(texts, "\n"))
	body = strings.ReplaceAll(body, "{GOLD}", goldBlock(snap.GoldComparison))

	dt := utils.DateTime(snap.LastUpdate)
	body = strings.ReplaceAll(body, "{DATETIME}", dt)
	body = strings.ReplaceAll(body, "{DATE}", strings.Split(dt, " ")[0])
	body = strings.ReplaceAll(body, "{TIME}", utils.TimeHHMM(snap.LastUpdate))

	return Output{Text: strings.TrimSpace(body), Lines: lines}
}

func currencyLine(code currency.Code, name, icon string, q currency.Quote, bestBuy sources.SourceName) string {
	places := int(code.Precision())
	var b strings.Builder
	b.WriteString(icon)
	b.WriteString(" ")
	b.WriteString(name)
	b.WriteString(": ")
	b.WriteString(side(q.Buy.InexactFloat64(), places))
	b.WriteString(" / ")
	b.WriteString(side(q.Sell.InexactFloat64(), places))
	if bestBuy != "" {
		b.WriteString(" (")
		b.WriteString(SourceLabel(bestBuy))
		b.WriteString(")")
	}
	return b.String()
}

func side(v float64, places int) string {
	if v <= 0 {
		return "-"
	}
	return utils.FormatNumber(v, places)
}

func goldBlock(gc *comparison.GoldComparison) string {
	if gc == nil {
		return ""
	}
	lines := []string{
		"🇹🇷 1 kg: " + amount(gc.Turkey.Per1kg) + " TRY",
	}
	if num(gc.World.Per1kg) > 0 {
		lines = append(lines,
			"🌍 1 kg: "+amount(gc.World.Per1kg)+" TRY",
			"Fark: "+amount(gc.Difference.Amount)+" TRY ("+utils.SignedPercent(num(gc.Difference.Percent))+") "+gc.Difference.Status,
		)
	}
	if rc := gc.World.Regional; rc != nil {
		lines = append(lines, "İstanbul/Londra: $"+rc.Istanbul.Price+" / $"+rc.London.Price+" → "+amount(rc.Difference.Total)+" TRY")
	}
	return strings.Join(lines, "\n")
}

func num(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func amount(s string) string {
	return utils.FormatNumber(num(s), 2)
}
