package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text 把用户输入清洗为纯文本：去掉所有 HTML 标签并还原实体。
//
// 商品描述和聊天消息都以纯文本入库，渲染端不需要再做转义判断。
func Text(s string) string {
	cleaned := strict.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
