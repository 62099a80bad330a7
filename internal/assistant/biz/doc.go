// Package biz 提供学习助手的业务逻辑层。
//
// 该包采用分层架构，将业务逻辑拆分为以下组件：
//   - IntentParser: 负责 LLM 意图解析（查询改写、类型识别、主题对齐）
//   - Searcher: 负责向量检索（嵌入、过滤、topK 裁剪）
//   - ContentStore: 负责按 ID 水合语料内容
//   - Generator: 负责基于检索结果生成回答
//   - Service: 组合以上组件，提供同步查询与流式查询入口
package biz
