package calendar

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Page описывает одну страницу элементов.
type Page[T any] struct {
	Items    []T  `json:"items"`
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	HasPrev  bool `json:"has_prev"`
	Total    int  `json:"total"`
}

// Paginate возвращает срез items для указанной страницы и метаданные.
// page нумеруется с 1. При некорректных значениях используются дефолты,
// размер страницы ограничен maxPageSize.
func Paginate[T any](items []T, page, pageSize int) Page[T] {
	total := len(items)

	page, pageSize, start := PageBounds(page, pageSize)
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	pageItems := items[start:end]
	if pageItems == nil {
		pageItems = []T{}
	}

	return Page[T]{
		Items:    pageItems,
		Page:     page,
		PageSize: pageSize,
		HasNext:  end < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}

// PageBounds нормализует номер и размер страницы и возвращает смещение
// для постраничной выборки из БД.
func PageBounds(page, pageSize int) (int, int, int) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return page, pageSize, (page - 1) * pageSize
}

// PageOf собирает страницу из уже выбранного куска и общего количества.
func PageOf[T any](items []T, page, pageSize, total int) Page[T] {
	page, pageSize, offset := PageBounds(page, pageSize)
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:    items,
		Page:     page,
		PageSize: pageSize,
		HasNext:  offset+len(items) < total,
		HasPrev:  page > 1,
		Total:    total,
	}
}
