package service

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/intakeplan/internal/db"
	"github.com/intakeplan/internal/logger"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

const (
	// MinSearchTermRunes 是触发产品搜索的最短关键词长度
	MinSearchTermRunes = 2
	defaultSearchLimit = 20
)

// ErrProductNotFound 在目录中不存在指定产品时返回
var ErrProductNotFound = errors.New("product not found")

// likeEscaper 把关键词中的 LIKE 通配符转为字面量
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ProductService 负责营养剂目录的检索与初始化
type ProductService struct {
	db *gorm.DB
}

// ProductSeed 描述 YAML 种子文件中的一项
type ProductSeed struct {
	Name    string `yaml:"name"`
	Company string `yaml:"company"`
}

type productSeedFile struct {
	Products []ProductSeed `yaml:"products"`
}

// NewProductService 构造 ProductService
func NewProductService(gdb *gorm.DB) *ProductService {
	return &ProductService{db: gdb}
}

// Search 按名称或厂商模糊匹配，关键词不足两个字符时返回空结果
func (s *ProductService) Search(term string) ([]db.Product, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinSearchTermRunes {
		return []db.Product{}, nil
	}

	like := fmt.Sprintf("%%%s%%", likeEscaper.Replace(term))
	var products []db.Product
	if err := s.db.Where(`name LIKE ? ESCAPE '\' OR company_name LIKE ? ESCAPE '\'`, like, like).
		Order("name ASC").
		Limit(defaultSearchLimit).
		Find(&products).Error; err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	return products, nil
}

// Get 根据 ID 获取产品
func (s *ProductService) Get(id uint) (*db.Product, error) {
	var product db.Product
	if err := s.db.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &product, nil
}

// Create 新建产品
func (s *ProductService) Create(name, company string) (*db.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("product name is required")
	}

	product := db.Product{Name: name, CompanyName: strings.TrimSpace(company)}
	if err := s.db.Create(&product).Error; err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &product, nil
}

// Seed 读取 YAML 目录文件并补齐缺失的产品，已存在的同名产品保持不变
func (s *ProductService) Seed(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read product seed: %w", err)
	}

	var file productSeedFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return 0, fmt.Errorf("parse product seed: %w", err)
	}

	created := 0
	for _, seed := range file.Products {
		name := strings.TrimSpace(seed.Name)
		if name == "" {
			continue
		}

		var count int64
		if err := s.db.Model(&db.Product{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return created, fmt.Errorf("check product: %w", err)
		}
		if count > 0 {
			continue
		}

		if _, err := s.Create(name, seed.Company); err != nil {
			return created, err
		}
		created++
	}

	logger.WithComponent("product").WithField("created", created).Info("product catalog seeded")
	return created, nil
}
