package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// MaxPage bounds ?page= so offsets stay far from integer overflow.
const MaxPage = 10000

// Page reads ?page= as a 1-based page number clamped to [1, MaxPage].
func Page(c *gin.Context) int {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	if page > MaxPage {
		return MaxPage
	}
	return page
}

// Offset is the row offset of page for the given page size.
func Offset(page, size int) int {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * size
}
