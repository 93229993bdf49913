package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type productPayload struct {
	PrdID       uint   `json:"prdId"`
	ProductName string `json:"productName"`
	CompanyName string `json:"companyName"`
}

// SearchProducts 按关键词检索营养剂目录
func (a *API) SearchProducts(c *gin.Context) {
	products, err := a.products.Search(c.Query("keyword"))
	if err != nil {
		respondError(c, http.StatusInternalServerError, "제품 검색에 실패했습니다")
		return
	}

	items := make([]productPayload, 0, len(products))
	for _, product := range products {
		items = append(items, productPayload{
			PrdID:       product.ID,
			ProductName: product.Name,
			CompanyName: product.CompanyName,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
