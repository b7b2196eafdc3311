package pipeline

import (
	"math"
	"path/filepath"

	"resurgence/internal/platform/logger"
	"resurgence/internal/platform/paths"
	"resurgence/internal/services/synthesis"
)

// Digest reads the processed tables back and logs the key statistics of a
// completed run. Numbers come from the artifacts on disk, never from
// in-memory state, so the report matches what downstream readers will see
func Digest(layout paths.Layout) {
	log := logger.Named("digest")
	dir := layout.DataProcessed

	if trends, err := synthesis.LoadTable(filepath.Join(dir, "real_trends_analysis.csv"), "trends"); err == nil {
		for _, lang := range []string{"Spanish", "German", "French", "English"} {
			i := trends.Find("Language", lang)
			if i < 0 {
				continue
			}
			log.Info().
				Str("language", lang).
				Float64("pre_median", trends.Num(i, "Pre_Median")).
				Float64("post_median", trends.Num(i, "Post_Median")).
				Float64("effect_pct", trends.Num(i, "Effect_Pct")).
				Float64("p_value", trends.Num(i, "MW_P_Value")).
				Msg("search interest")
		}
	}

	if biblio, err := synthesis.LoadTable(filepath.Join(dir, "real_bibliometrics.csv"), "biblio"); err == nil {
		if i := biblio.Find("Year", "2023"); i >= 0 {
			log.Info().
				Float64("ct_ai_pubs_2023", biblio.Num(i, "CT_AI_Pubs")).
				Float64("ct_ai_yoy_2023_pct", biblio.Num(i, "CT_AI_YoY")).
				Msg("bibliometrics")
		}
		r2022, r2024 := math.NaN(), math.NaN()
		if i := biblio.Find("Year", "2022"); i >= 0 {
			r2022 = biblio.Num(i, "Critical_Ratio_per_10k")
		}
		if i := biblio.Find("Year", "2024"); i >= 0 {
			r2024 = biblio.Num(i, "Critical_Ratio_per_10k")
		}
		if r2022 > 0 && !math.IsNaN(r2024) {
			log.Info().
				Float64("ratio_per_10k_2022", r2022).
				Float64("ratio_per_10k_2024", r2024).
				Float64("ratio_acceleration", r2024/r2022).
				Msg("field-normalized ratio")
		}
	}

	if cn, err := synthesis.LoadTable(filepath.Join(dir, "real_community_notes.csv"), "notes"); err == nil {
		m := cn.Metrics()
		ev := log.Info().
			Float64("contributors", m["Total Contributors (unique authors)"]).
			Float64("notes", m["Total Notes"]).
			Float64("distinct_posts", m["Distinct Posts Annotated (tweetId count)"])
		pre, post := m["Pre avg monthly notes"], m["Post avg monthly notes"]
		if pre > 0 {
			ev = ev.Float64("monthly_notes_growth_pct", (post/pre-1)*100)
		}
		ev.Msg("annotation activity")
	}

	if strat, err := synthesis.LoadTable(filepath.Join(dir, "real_hdi_stratification.csv"), "stratify"); err == nil {
		totals := make(map[string]float64)
		var all float64
		pubs := make([]float64, 0, len(strat.Rows))
		for i := range strat.Rows {
			p := strat.Num(i, "Publications")
			if math.IsNaN(p) {
				continue
			}
			totals[strat.Cell(i, "HDI_Category")] += p
			all += p
			pubs = append(pubs, p)
		}
		ev := log.Info()
		if totals["Low"] > 0 {
			ev = ev.Float64("hdi_tier_gap", totals["Very High"]/totals["Low"])
		}
		if all > 0 {
			ev = ev.Float64("top5_share_pct", topShare(pubs, 5)/all*100)
		}
		ev.Msg("stratification")
	}

	if mooc, err := synthesis.LoadTable(filepath.Join(dir, "real_mooc_regional.csv"), "stratify"); err == nil {
		if i := mooc.Find("Region", "Latin America"); i >= 0 {
			log.Info().
				Float64("latin_america_ct_genai_ratio", mooc.Num(i, "CT_GenAI_Ratio")).
				Msg("regional skill growth")
		}
	}
}

// topShare sums the n largest values
func topShare(vals []float64, n int) float64 {
	var sum float64
	for k := 0; k < n && len(vals) > 0; k++ {
		best := 0
		for i := range vals {
			if vals[i] > vals[best] {
				best = i
			}
		}
		sum += vals[best]
		vals = append(vals[:best], vals[best+1:]...)
	}
	return sum
}
