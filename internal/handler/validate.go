package handler

import (
	stderrors "errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/paiban/mito/pkg/errors"
)

// newValidator 创建按 json 字段名报告错误的校验器
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct 校验结构体，失败时转为 ValidationErrors
func (h *ScheduleHandler) validateStruct(s interface{}) *errors.AppError {
	err := h.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		return errors.Wrap(err, errors.CodeInvalidInput, "请求校验失败")
	}

	ve := &errors.ValidationErrors{}
	for _, fe := range fieldErrs {
		ve.Add(fieldPath(fe.Namespace()), describe(fe))
	}
	return ve.ToAppError()
}

// fieldPath 去掉命名空间开头的结构体名
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "不能为空"
	case "min":
		return "不能小于 " + fe.Param()
	case "max":
		return "不能大于 " + fe.Param()
	case "gt":
		return "必须大于 " + fe.Param()
	case "oneof":
		return "必须是以下之一: " + fe.Param()
	default:
		return "校验失败: " + fe.Tag()
	}
}
