package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campus-events/internal/model"
	"campus-events/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportGenerateFail = errors.New("生成 Excel 文件失败")
)

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportRegistrants 按报名顺序导出活动报名名单
	ExportRegistrants(ctx context.Context, actorID, eventID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	gate   *AccessGate
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, gate: NewAccessGate(repo), logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportRegistrants 导出报名名单为 Excel
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：活动标题 + 时间 + 地点（合并单元格）
//   - 第 2 行：表头 # / Name / Email / College / Major / Graduation Year
//   - 之后每行一名报名者，顺序与报名先后一致

func (s *exportService) ExportRegistrants(ctx context.Context, actorID, eventID string) (*bytes.Buffer, string, error) {
	if _, err := s.gate.RequireAdmin(ctx, actorID); err != nil {
		return nil, "", err
	}

	// 1. 查询活动
	event, err := s.repo.Event.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrEventNotFound
		}
		s.logger.Error("查询活动失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, "", err
	}

	// 2. 批量查询报名者
	users, err := s.repo.User.GetByIDs(ctx, event.RegisteredUsers)
	if err != nil {
		s.logger.Error("查询报名者失败", zap.String("event_id", eventID), zap.Error(err))
		return nil, "", err
	}
	byID := make(map[string]*model.User, len(users))
	for i := range users {
		byID[users[i].UserID] = &users[i]
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Registrants"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, "", ErrExportGenerateFail
	}

	f.SetColWidth(sheetName, "A", "A", 6)
	f.SetColWidth(sheetName, "B", "C", 28)
	f.SetColWidth(sheetName, "D", "F", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	title := fmt.Sprintf("%s | %s | %s", event.Title, event.Date.UTC().Format("2006-01-02 15:04 MST"), event.Location)
	f.SetCellValue(sheetName, "A1", title)
	f.MergeCell(sheetName, "A1", "F1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	headers := []string{"#", "Name", "Email", "College", "Major", "Graduation Year"}
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	row := 3
	for i, uid := range event.RegisteredUsers {
		values := []interface{}{i + 1, "(deleted user)", "", "", "", ""}
		if u, ok := byID[uid]; ok {
			values = []interface{}{i + 1, u.Name, u.Email, deref(u.College), deref(u.Major), deref(u.GraduationYear)}
		}
		for col, v := range values {
			f.SetCellValue(sheetName, cell(colName(col), row), v)
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("registrants_%s.xlsx", slugify(event.Title))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// slugify 生成文件名安全的标题
func slugify(s string) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if slug == "" {
		return "event"
	}
	if len(slug) > 60 {
		slug = strings.TrimRight(slug[:60], "-")
	}
	return slug
}
