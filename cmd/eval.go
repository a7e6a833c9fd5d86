package cmd

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/tabocr/pkg/config"
	"github.com/lehigh-university-libraries/tabocr/pkg/pdf"
	"github.com/lehigh-university-libraries/tabocr/pkg/pipeline"
)

type EvalConfig struct {
	Engine     string   `yaml:"engine"`
	Languages  []string `yaml:"languages"`
	Level      string   `yaml:"level"`
	Preprocess string   `yaml:"preprocess"`
	CSVPath    string   `yaml:"csv_path"`
	Dir        string   `yaml:"dir"`
	TestRows   []int    `yaml:"rows"`
	Timestamp  string   `yaml:"timestamp"`
}

type EvalResult struct {
	Identifier            string  `yaml:"identifier"`
	ImagePath             string  `yaml:"image_path"`
	TranscriptPath        string  `yaml:"transcript_path"`
	EngineResponse        string  `yaml:"engine_response"`
	Confidence            float64 `yaml:"confidence"`
	CharacterSimilarity   float64 `yaml:"character_similarity"`
	WordSimilarity        float64 `yaml:"word_similarity"`
	WordAccuracy          float64 `yaml:"word_accuracy"`
	WordErrorRate         float64 `yaml:"word_error_rate"`
	TotalWordsOriginal    int     `yaml:"total_words_original"`
	TotalWordsTranscribed int     `yaml:"total_words_transcribed"`
	CorrectWords          int     `yaml:"correct_words"`
	Substitutions         int     `yaml:"substitutions"`
	Deletions             int     `yaml:"deletions"`
	Insertions            int     `yaml:"insertions"`
}

type EvalSummary struct {
	Config  EvalConfig   `yaml:"config"`
	Results []EvalResult `yaml:"results"`
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate OCR accuracy against ground truth transcripts",
	Long: `Evaluate OCR accuracy by running an engine over the images listed in a CSV
file (columns: image,transcript) and comparing the recognized text with the
transcripts. Results are written to evals/eval_<timestamp>.yaml.

You can either provide individual flags or use a previous evaluation file.`,
	RunE: runEval,
}

var (
	evalEngine     string
	evalLangs      []string
	evalLevel      string
	evalPreprocess string
	evalCSVPath    string
	evalConfigPath string
	evalDir        string
	evalRows       []int
)

func init() {
	RootCmd.AddCommand(evalCmd)

	d := config.Defaults()
	evalCmd.Flags().StringVar(&evalEngine, "engine", d.Engine, "OCR engine: tesseract, vision, azure")
	evalCmd.Flags().StringSliceVar(&evalLangs, "lang", d.Languages, "Recognition language")
	evalCmd.Flags().StringVar(&evalLevel, "level", d.Level, "Fragment granularity: word or line")
	evalCmd.Flags().StringVar(&evalPreprocess, "preprocess", d.Preprocess, "Image preparation mode")
	evalCmd.Flags().StringVarP(&evalCSVPath, "csv", "c", "", "Path to CSV file with evaluation data")
	evalCmd.Flags().StringVar(&evalConfigPath, "config", "", "Path to previous evaluation file to rerun")
	evalCmd.Flags().StringVar(&evalDir, "dir", "./", "Prepend your CSV file paths with a directory")
	evalCmd.Flags().IntSliceVar(&evalRows, "rows", []int{}, "A list of row numbers to run the test on")

	evalCmd.MarkFlagsMutuallyExclusive("csv", "config")
	evalCmd.MarkFlagsOneRequired("csv", "config")
}

func runEval(cmd *cobra.Command, args []string) error {
	var evalConfig EvalConfig
	var err error

	if evalConfigPath != "" {
		evalConfig, err = loadEvalConfig(evalConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Printf("Loaded configuration from %s\n", evalConfigPath)
	} else {
		evalConfig = EvalConfig{
			Engine:     evalEngine,
			Languages:  evalLangs,
			Level:      evalLevel,
			Preprocess: evalPreprocess,
			CSVPath:    evalCSVPath,
			Dir:        evalDir,
			Timestamp:  time.Now().Format("2006-01-02_15-04-05"),
		}
	}
	if cmd.Flags().Changed("rows") {
		evalConfig.TestRows = evalRows
	}

	profile := config.Defaults()
	profile.Engine = evalConfig.Engine
	profile.Languages = evalConfig.Languages
	profile.Level = evalConfig.Level
	profile.Preprocess = evalConfig.Preprocess
	profile.Tables = false
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	engine, err := newRegistry().Get(profile.Engine)
	if err != nil {
		return err
	}
	defer closeEngine(engine)
	if err := engine.ValidateConfig(profile.OCRConfig()); err != nil {
		return fmt.Errorf("engine %s: %w", engine.Name(), err)
	}

	evalsDir := "evals"
	if err := os.MkdirAll(evalsDir, 0755); err != nil {
		return fmt.Errorf("failed to create evals directory: %w", err)
	}

	processor := pipeline.New(engine, pdf.Poppler{}, pipelineOptions(profile, time.Now()))
	recognize := func(imagePath string) (string, float64, error) {
		page := processor.RecognizePage(cmd.Context(), imagePath)
		if page.Err != "" {
			return "", 0, fmt.Errorf("%s", page.Err)
		}
		return page.Text(), page.Confidence, nil
	}

	results, err := processEvaluation(evalConfig, recognize)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	summary := EvalSummary{
		Config:  evalConfig,
		Results: results,
	}

	outputPath := filepath.Join(evalsDir, fmt.Sprintf("eval_%s.yaml", evalConfig.Timestamp))
	if err := saveEvalResults(summary, outputPath); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	fmt.Printf("\nEvaluation completed. Results saved to: %s\n", outputPath)
	printSummaryStats(results)

	return nil
}

func loadEvalConfig(configPath string) (EvalConfig, error) {
	var summary EvalSummary

	data, err := os.ReadFile(configPath)
	if err != nil {
		return EvalConfig{}, err
	}

	if err := yaml.Unmarshal(data, &summary); err != nil {
		return EvalConfig{}, err
	}

	// Update timestamp for rerun
	summary.Config.Timestamp = time.Now().Format("2006-01-02_15-04-05")

	return summary.Config, nil
}

// recognizeFunc returns the text and mean confidence recognized in an image.
type recognizeFunc func(imagePath string) (string, float64, error)

func processEvaluation(evalConfig EvalConfig, recognize recognizeFunc) ([]EvalResult, error) {
	file, err := os.Open(evalConfig.CSVPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	// Skip header row if present
	dataRows := records
	if strings.EqualFold(strings.TrimSpace(records[0][0]), "image") {
		dataRows = records[1:]
	}

	var results []EvalResult
	for i, row := range dataRows {
		if len(evalConfig.TestRows) > 0 && !slices.Contains(evalConfig.TestRows, i) {
			slog.Debug("Skipping row", "row", i+1)
			continue
		}
		if len(row) < 2 {
			slog.Warn("Insufficient columns", "row", i+1)
			continue
		}

		result, err := processRow(row, evalConfig.Dir, recognize)
		if err != nil {
			slog.Error("Error processing row", "row", i+1, "err", err)
			continue
		}

		results = append(results, result)
		printRowResult(result)
	}

	return results, nil
}

func processRow(row []string, dir string, recognize recognizeFunc) (EvalResult, error) {
	imagePath := filepath.Join(dir, strings.TrimSpace(row[0]))
	transcriptPath := filepath.Join(dir, strings.TrimSpace(row[1]))

	groundTruth, err := os.ReadFile(transcriptPath)
	if err != nil {
		return EvalResult{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	text, confidence, err := recognize(imagePath)
	if err != nil {
		return EvalResult{}, fmt.Errorf("ocr failed: %w", err)
	}

	result := CalculateAccuracyMetrics(string(groundTruth), text)
	result.Identifier = filepath.Base(imagePath)
	result.ImagePath = imagePath
	result.TranscriptPath = transcriptPath
	result.EngineResponse = text
	result.Confidence = confidence
	return result, nil
}

func saveEvalResults(summary EvalSummary, outputPath string) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, data, 0644)
}

func printRowResult(result EvalResult) {
	fmt.Printf("\n=== Results for %s ===\n", result.Identifier)
	fmt.Printf("Image: %s\n", result.ImagePath)
	fmt.Printf("Transcript: %s\n", result.TranscriptPath)
	fmt.Printf("OCR Confidence: %.3f\n", result.Confidence)
	fmt.Printf("Character Similarity: %.3f\n", result.CharacterSimilarity)
	fmt.Printf("Word Similarity: %.3f\n", result.WordSimilarity)
	fmt.Printf("Word Accuracy: %.3f\n", result.WordAccuracy)
	fmt.Printf("Word Error Rate: %.3f\n", result.WordErrorRate)
	fmt.Printf("Correct Words: %d of %d\n", result.CorrectWords, result.TotalWordsOriginal)
	fmt.Printf("Substitutions: %d  Deletions: %d  Insertions: %d\n", result.Substitutions, result.Deletions, result.Insertions)
}

func printSummaryStats(results []EvalResult) {
	if len(results) == 0 {
		return
	}

	var totalCharSim, totalWordSim, totalWordAcc, totalWER float64

	for _, result := range results {
		totalCharSim += result.CharacterSimilarity
		totalWordSim += result.WordSimilarity
		totalWordAcc += result.WordAccuracy
		totalWER += result.WordErrorRate
	}

	count := float64(len(results))

	fmt.Printf("\n=== SUMMARY STATISTICS ===\n")
	fmt.Printf("Total Evaluations: %d\n", len(results))
	fmt.Printf("Average Character Similarity: %.3f\n", totalCharSim/count)
	fmt.Printf("Average Word Similarity: %.3f\n", totalWordSim/count)
	fmt.Printf("Average Word Accuracy: %.3f\n", totalWordAcc/count)
	fmt.Printf("Average Word Error Rate: %.3f\n", totalWER/count)
}

var whitespace = regexp.MustCompile(`\s+`)

func normalizeText(text string) string {
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(text), " "))
}

// levenshteinDistance counts rune edits between s1 and s2.
func levenshteinDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}

func calculateSimilarity(s1, s2 string) float64 {
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshteinDistance(s1, s2)
	return 1.0 - float64(distance)/float64(maxLen)
}

// calculateWordLevelMetrics aligns the word sequences and counts each edit kind
func calculateWordLevelMetrics(orig, trans []string) (float64, int, int, int, int) {
	m, n := len(orig), len(trans)
	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
		dp[i][0] = i
	}
	for j := 0; j <= n; j++ {
		dp[0][j] = j
	}

	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			if orig[i-1] == trans[j-1] {
				dp[i][j] = dp[i-1][j-1]
			} else {
				dp[i][j] = 1 + min(dp[i-1][j], dp[i][j-1], dp[i-1][j-1])
			}
		}
	}

	i, j := m, n
	substitutions, deletions, insertions, correct := 0, 0, 0, 0
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && orig[i-1] == trans[j-1]:
			correct++
			i--
			j--
		case i > 0 && j > 0 && dp[i][j] == dp[i-1][j-1]+1:
			substitutions++
			i--
			j--
		case i > 0 && dp[i][j] == dp[i-1][j]+1:
			deletions++
			i--
		default:
			insertions++
			j--
		}
	}

	wer := 0.0
	if m > 0 {
		wer = float64(substitutions+deletions+insertions) / float64(m)
	}

	return 1.0 - wer, correct, substitutions, deletions, insertions
}

func CalculateAccuracyMetrics(original, transcribed string) EvalResult {
	origNorm := normalizeText(original)
	transNorm := normalizeText(transcribed)
	origWords := strings.Fields(origNorm)
	transWords := strings.Fields(transNorm)
	wordAcc, correct, subs, dels, ins := calculateWordLevelMetrics(origWords, transWords)

	return EvalResult{
		CharacterSimilarity:   calculateSimilarity(strings.ReplaceAll(origNorm, " ", ""), strings.ReplaceAll(transNorm, " ", "")),
		WordSimilarity:        calculateSimilarity(origNorm, transNorm),
		WordAccuracy:          wordAcc,
		WordErrorRate:         1.0 - wordAcc,
		TotalWordsOriginal:    len(origWords),
		TotalWordsTranscribed: len(transWords),
		CorrectWords:          correct,
		Substitutions:         subs,
		Deletions:             dels,
		Insertions:            ins,
	}
}
