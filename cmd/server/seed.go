package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"campus-events/internal/dto"
	"campus-events/internal/service"
)

// seedFile 种子文件格式
//
//	admin: office@campus.edu   # 可选，默认取第一个管理员
//	events:
//	  - title: Hack night
//	    date: "2026-11-20T18:00:00Z"
//	    location: Library
//	    category: academic
//	    capacity: 40
type seedFile struct {
	Admin  string      `yaml:"admin"`
	Events []seedEvent `yaml:"events"`
}

type seedEvent struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
	Location    string `yaml:"location"`
	Category    string `yaml:"category"`
	Capacity    *int   `yaml:"capacity"`
}

func (e seedEvent) request() *dto.CreateEventRequest {
	req := &dto.CreateEventRequest{
		Title:       e.Title,
		Description: e.Description,
		Date:        e.Date,
		Location:    e.Location,
		Category:    e.Category,
	}
	if e.Capacity != nil {
		req.Capacity = *e.Capacity
	}
	return req
}

var errNoAdmin = errors.New("没有可用的管理员账号，请先执行 admin create")

func newSeedCmd(opts *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:     "seed",
		Short:   "Create events from a YAML file",
		Example: `  campus-events seed -f events.yaml`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			seed, err := parseSeed(f)
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()

			created, err := applySeed(cmd.Context(), a.offlineService(), seed, a.log.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d of %d events\n", created, len(seed.Events))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (YAML)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parseSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("解析种子文件失败: %w", err)
	}
	if len(seed.Events) == 0 {
		return nil, errors.New("种子文件中没有活动")
	}
	return &seed, nil
}

// applySeed 以管理员身份逐条创建活动，单条校验失败只记录日志并跳过
func applySeed(ctx context.Context, svc *service.Service, seed *seedFile, logger *zap.Logger) (int, error) {
	adminID, err := resolveSeedAdmin(ctx, svc, seed.Admin)
	if err != nil {
		return 0, err
	}

	created := 0
	for i, e := range seed.Events {
		ev, err := svc.Event.Create(ctx, adminID, e.request())
		if err != nil {
			var verr *service.ValidationError
			if errors.As(err, &verr) {
				logger.Warn("跳过无效活动", zap.Int("index", i), zap.String("title", e.Title), zap.Error(err))
				continue
			}
			return created, err
		}
		logger.Info("活动已创建", zap.String("id", ev.ID), zap.String("title", ev.Title))
		created++
	}
	return created, nil
}

func resolveSeedAdmin(ctx context.Context, svc *service.Service, email string) (string, error) {
	users, err := svc.User.ListAll(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range users {
		if !u.IsAdmin {
			continue
		}
		if email == "" || u.Email == email {
			return u.ID, nil
		}
	}
	if email != "" {
		return "", fmt.Errorf("%s 不是管理员", email)
	}
	return "", errNoAdmin
}
