package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"talent-match-go/internal/config"
	"talent-match-go/internal/constants"
	"talent-match-go/internal/logger"
	"talent-match-go/internal/matching"
	"talent-match-go/internal/storage"
	"talent-match-go/internal/types"
)

// matchRow 候选人对岗位的一行匹配输出
type matchRow struct {
	CandidateID string
	Name        string
	JobID       string
	JobTitle    string
	Score       float64
	Bucket      types.Bucket
}

// handleMatchCommand 全量候选人 x 全量岗位的余弦匹配，输出表格和CSV
func handleMatchCommand(ctx context.Context, cfg *config.Config) {
	store, err := storage.NewPinecone(&cfg.VectorStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("创建向量库客户端失败")
	}

	candidates, candidateChunkIDs, err := fetchNamespace(ctx, store, candidateNamespace(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("取回候选人向量失败")
	}
	jobs, jobIDs, err := fetchNamespace(ctx, store, jobNamespace(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("取回岗位向量失败")
	}
	if len(candidates) == 0 || len(jobs) == 0 {
		logger.Fatal().
			Int("candidates", len(candidates)).
			Int("jobs", len(jobs)).
			Msg("候选人或岗位为空，无法匹配")
	}

	// 分块按候选人聚合，同一候选人取所有分块里的最高分
	byCandidate, candidateOrder := groupByCandidate(candidateChunkIDs, candidates)
	thresholds := matching.Thresholds{
		Hired:     cfg.Matching.Thresholds.Hired,
		Shortlist: cfg.Matching.Thresholds.Shortlist,
		Rejected:  cfg.Matching.Thresholds.Rejected,
	}

	var rows []matchRow
	for _, jobID := range jobIDs {
		job := jobs[jobID]
		jobTitle, _ := job.Metadata["title"].(string)
		for _, candidateID := range candidateOrder {
			chunks := byCandidate[candidateID]
			score := bestChunkScore(job.Vector, chunks)
			rows = append(rows, matchRow{
				CandidateID: candidateID,
				Name:        displayNameFromChunks(chunks),
				JobID:       jobID,
				JobTitle:    jobTitle,
				Score:       score,
				Bucket:      matching.Classify(score, thresholds),
			})
		}
	}

	// 分数降序输出，同分保持摄取顺序
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Score > rows[j].Score
	})

	printMatchTable(rows)

	if err := writeMatchCSV(outputCSV, rows); err != nil {
		logger.Fatal().Err(err).Str("path", outputCSV).Msg("写CSV失败")
	}
	logger.Info().
		Int("rows", len(rows)).
		Str("csv", outputCSV).
		Msg("匹配完成")
}

// fetchNamespace 列举命名空间的全部ID并分批取回向量。
// 第二个返回值是按列举顺序排好的ID切片——map的遍历顺序是随机的，
// 依赖摄取顺序的调用方必须走这个切片。
// 列举到但取不回的ID记警告后跳过，不让单条脏数据拖垮整个匹配。
func fetchNamespace(ctx context.Context, store storage.VectorStore, namespace string) (map[string]types.VectorRecord, []string, error) {
	var ids []string
	token := ""
	for {
		page, err := store.ListIDs(ctx, namespace, constants.DefaultListPageSize, token)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, page.IDs...)
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	vectors := make(map[string]types.VectorRecord, len(ids))
	ordered := make([]string, 0, len(ids))
	for start := 0; start < len(ids); start += constants.DefaultListPageSize {
		end := start + constants.DefaultListPageSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := store.Fetch(ctx, namespace, ids[start:end])
		if err != nil {
			return nil, nil, err
		}
		for _, id := range ids[start:end] {
			record, ok := batch[id]
			if !ok {
				logger.Warn().Str("id", id).Str("namespace", namespace).Msg("向量在取回时已不存在")
				continue
			}
			vectors[id] = record
			ordered = append(ordered, id)
		}
	}
	return vectors, ordered, nil
}

// groupByCandidate 按摄取顺序把分块向量归组到候选人。
// 优先使用metadata里的candidate_id，缺失时从分块ID回推。
// 返回的顺序切片按候选人首次出现排列。
func groupByCandidate(ids []string, vectors map[string]types.VectorRecord) (map[string][]types.VectorRecord, []string) {
	grouped := make(map[string][]types.VectorRecord)
	var order []string
	for _, id := range ids {
		record := vectors[id]
		candidateID, _ := record.Metadata["candidate_id"].(string)
		if candidateID == "" {
			candidateID = matching.CandidateIDFromChunkID(id)
		}
		if _, seen := grouped[candidateID]; !seen {
			order = append(order, candidateID)
		}
		grouped[candidateID] = append(grouped[candidateID], record)
	}
	return grouped, order
}

// bestChunkScore 取候选人所有分块对岗位向量的最高余弦分。
// 所有分块都算不出分数时保留哨兵值，分桶自然落入Rejected。
func bestChunkScore(jobVector []float64, chunks []types.VectorRecord) float64 {
	best := matching.NoSimilarity
	for _, chunk := range chunks {
		if s := matching.CosineSimilarity(jobVector, chunk.Vector); s > best {
			best = s
		}
	}
	return best
}

func displayNameFromChunks(chunks []types.VectorRecord) string {
	for _, chunk := range chunks {
		if name := types.CandidateDisplayName(chunk.Metadata); name != "Unknown" {
			return name
		}
	}
	return "Unknown"
}

func printMatchTable(rows []matchRow) {
	fmt.Printf("%-40s %-20s %-24s %8s  %s\n", "CANDIDATE", "NAME", "JOB", "SCORE", "BUCKET")
	for _, row := range rows {
		fmt.Printf("%-40s %-20s %-24s %8.4f  %s\n",
			row.CandidateID, row.Name, row.JobID, row.Score, row.Bucket.Short())
	}
}

func writeMatchCSV(path string, rows []matchRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"candidate_id", "candidate_name", "jd_id", "jd_title", "score", "bucket"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.CandidateID,
			row.Name,
			row.JobID,
			row.JobTitle,
			fmt.Sprintf("%.6f", row.Score),
			string(row.Bucket),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	// 显式Flush再检查错误，defer里Flush会吞掉最后一批写入的失败
	w.Flush()
	return w.Error()
}
